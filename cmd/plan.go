package cmd

import (
	"encoding/json"
	"fmt"
	"image"

	"github.com/spf13/cobra"

	"github.com/ikawaha/tilescale/engine"
)

type planJob struct {
	Row         int             `json:"row"`
	Col         int             `json:"col"`
	Input       image.Rectangle `json:"input"`
	PaddedInput image.Rectangle `json:"padded_input"`
	Output      image.Rectangle `json:"output"`
	Offset      image.Point     `json:"offset"`
}

type plan struct {
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	TileSize     int       `json:"tile_size"`
	Padding      int       `json:"padding"`
	Scale        int       `json:"scale"`
	Cols         int       `json:"cols"`
	Rows         int       `json:"rows"`
	OutputWidth  int       `json:"output_width"`
	OutputHeight int       `json:"output_height"`
	Jobs         []planJob `json:"jobs"`
}

// NewPlanCmd prints the tile schedule of an image size.
func NewPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "print the tile schedule",
		Long:  "Prints the tiles an image of the given size is split into, with their padded inputs and output placement.",
		RunE: func(cmd *cobra.Command, args []string) error {
			width, _ := cmd.Flags().GetInt("width")
			height, _ := cmd.Flags().GetInt("height")
			tile, _ := cmd.Flags().GetInt("tile")
			padding, _ := cmd.Flags().GetInt("padding")
			scale, _ := cmd.Flags().GetInt("scale")
			s, err := engine.NewSchedule(width, height, tile, padding, scale)
			if err != nil {
				return err
			}
			p := plan{
				Width:    width,
				Height:   height,
				TileSize: tile,
				Padding:  padding,
				Scale:    scale,
				Cols:     s.Cols(),
				Rows:     s.Rows(),
				Jobs:     make([]planJob, 0, s.Len()),
			}
			p.OutputWidth, p.OutputHeight = s.OutputSize()
			for job := range s.All() {
				p.Jobs = append(p.Jobs, planJob(job))
			}
			w := cmd.OutOrStdout()
			switch format, _ := cmd.Flags().GetString("format"); format {
			case "json":
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(p)
			case "text":
				fmt.Fprintf(w, "%dx%d -> %dx%d, %d cols x %d rows\n", p.Width, p.Height, p.OutputWidth, p.OutputHeight, p.Cols, p.Rows)
				for _, j := range p.Jobs {
					fmt.Fprintf(w, "(%d, %d)\tinput=%v\tpadded=%v\toutput=%v\toffset=%v\n", j.Row, j.Col, j.Input, j.PaddedInput, j.Output, j.Offset)
				}
				return nil
			default:
				return fmt.Errorf("invalid format %q, choose from 'text' or 'json'", format)
			}
		},
	}
	f := cmd.Flags()
	f.Int("width", 0, "image width")
	f.Int("height", 0, "image height")
	f.Int("tile", engine.DefaultTileSize, "tile size")
	f.Int("padding", 10, "context margin")
	f.Int("scale", 4, "scale factor")
	f.StringP("format", "f", "text", "output format (text|json)")
	return cmd
}
