package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cubebuddy/cubebuddy/internal/capture"
	"github.com/cubebuddy/cubebuddy/internal/domain"
	"github.com/cubebuddy/cubebuddy/internal/notation"
	"github.com/cubebuddy/cubebuddy/internal/puzzle"
)

var (
	extractPuzzle string
	extractSeed   int64
	explainInv    bool
	puzzleCat     string
	puzzleQuery   string
)

var extractCmd = &cobra.Command{
	Use:   "extract [flags] image...",
	Short: "Print the sticker colours read from face images",
	Long: `extract reads one image per face in capture order (Front, Back, Left,
Right, Top, Bottom) and prints the detected colours. Faces without an image
are filled with random palette colours and marked with '?'.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := newLogger(os.Stderr, cfg.Log)
		uc, ho, err := newService(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer ho.Close()
		uc.Seed = extractSeed

		images := make([][]byte, 0, len(args))
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			images = append(images, data)
		}

		s, err := uc.NewSession(extractPuzzle)
		if err != nil {
			return err
		}
		defer uc.CloseSession(s.ID)
		if s, err = uc.Upload(ctx, s.ID, images); err != nil {
			return err
		}

		unverified := make(map[int]bool, len(s.Unverified))
		for _, i := range s.Unverified {
			unverified[i] = true
		}
		out := cmd.OutOrStdout()
		for f := 0; f < s.Faces; f++ {
			cells := make([]string, 0, s.StickersPerFace)
			for j := 0; j < s.StickersPerFace; j++ {
				i := f*s.StickersPerFace + j
				mark := ""
				if unverified[i] {
					mark = "?"
				}
				cells = append(cells, s.Colors[i].String()+mark)
			}
			fmt.Fprintf(out, "%-6s %s\n", capture.FaceName(f), strings.Join(cells, " "))
		}
		if s.Balanced != nil && !*s.Balanced {
			fmt.Fprintf(out, "warning: colour counts are unbalanced (%d suspect stickers)\n", len(s.Suspect))
		}
		return nil
	},
}

var explainCmd = &cobra.Command{
	Use:   "explain <algorithm>",
	Short: "Explain each move of an algorithm",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		alg := strings.Join(args, " ")
		out := cmd.OutOrStdout()
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, mt := range notation.ExplainAlgorithm(alg) {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", mt.Symbol, mt.Explanation, mt.Tip)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if explainInv {
			fmt.Fprintf(out, "inverse: %s\n", notation.Inverse(alg))
		}
		return nil
	},
}

var puzzlesCmd = &cobra.Command{
	Use:   "puzzles",
	Short: "List supported puzzles",
	RunE: func(cmd *cobra.Command, args []string) error {
		ps := puzzle.Default().Search(domain.Category(puzzleCat), puzzleQuery)
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tFACES\tSTICKERS\tSCAN")
		for _, g := range ps {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n", g.ID, g.Name, g.Category, g.Faces, g.StickersPerFace, scanLabel(g))
		}
		return tw.Flush()
	},
}

func scanLabel(g domain.PuzzleGeometry) string {
	if g.Scannable {
		return "yes"
	}
	return "manual"
}

func init() {
	extractCmd.Flags().StringVarP(&extractPuzzle, "puzzle", "p", "3x3", "puzzle id")
	extractCmd.Flags().Int64Var(&extractSeed, "seed", 0, "placeholder fill seed (0 = random)")
	explainCmd.Flags().BoolVar(&explainInv, "inverse", false, "also print the inverse algorithm")
	puzzlesCmd.Flags().StringVar(&puzzleCat, "category", "", "filter by category")
	puzzlesCmd.Flags().StringVarP(&puzzleQuery, "query", "q", "", "filter by name or id")
}
