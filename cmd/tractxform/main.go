package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"tractspace/internal/models"
	"tractspace/internal/monitoring"
	"tractspace/pkg/config"
	"tractspace/pkg/pipeline"
	"tractspace/pkg/tractogram"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "tractxform.yaml", "YAML configuration file")
	writeDefault := flag.Bool("write-default-config", false, "Write the default configuration to -config and exit")
	lazy := flag.Bool("lazy", false, "Apply the affine lazily (overrides the config file when set)")
	toWorld := flag.Bool("to-world", false, "Bring the result to RAS+mm (overrides the config file when set)")
	numStreamlines := flag.Int("n", -1, "Number of synthetic streamlines (default: from config)")
	seed := flag.Int64("seed", 0, "Random seed (default: from config)")
	flag.Parse()

	if *writeDefault {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write default config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Command line flags win over the file when given
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "lazy":
			cfg.Transform.Lazy = *lazy
		case "to-world":
			cfg.Transform.ToWorld = *toWorld
		case "n":
			cfg.Synthetic.NumStreamlines = *numStreamlines
		case "seed":
			cfg.Synthetic.Seed = *seed
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if !cfg.Output.Verbose {
		monitoring.SetLogger(nil)
	}

	a, err := cfg.Affine()
	if err != nil {
		log.Fatalf("Invalid affine: %v", err)
	}
	toRASMM, err := cfg.AffineToRASMM()
	if err != nil {
		log.Fatalf("Invalid affine to RAS+mm: %v", err)
	}

	fmt.Println("================================")
	fmt.Println("TRACTOGRAM AFFINE TRANSFORM")
	fmt.Println("================================")

	params := &pipeline.Params{
		Synthetic: models.SyntheticParams{
			NumStreamlines:    cfg.Synthetic.NumStreamlines,
			MinPoints:         cfg.Synthetic.MinPoints,
			MaxPoints:         cfg.Synthetic.MaxPoints,
			Seed:              cfg.Synthetic.Seed,
			PointScalars:      cfg.Synthetic.PointScalars,
			StreamlineScalars: cfg.Synthetic.StreamlineScalars,
		},
		Affine:        a,
		AffineToRASMM: toRASMM,
		Lazy:          cfg.Transform.Lazy,
		ToWorld:       cfg.Transform.ToWorld,
	}

	runner := pipeline.NewRunner(params)
	if err := runner.Process(); err != nil {
		log.Fatalf("Transform failed: %v", err)
	}

	printSummary(runner.GetSummary())
}

func printSummary(s models.Summary) {
	fmt.Printf("\nTransform completed (%s) in %.3f seconds\n\n", s.Mode, s.Elapsed.Seconds())

	fmt.Printf("Streamlines: %d\n", s.NumStreamlines)
	fmt.Printf("Points: %d\n", s.NumPoints)
	fmt.Printf("Points per streamline: %.2f ± %.2f\n", s.MeanPoints, s.StdDevPoints)
	fmt.Printf("Chunk size: %d points\n", tractogram.BufferSize)

	fmt.Println("\nCoordinates (mm):")
	for d, name := range []string{"x", "y", "z"} {
		ax := s.Axes[d]
		fmt.Printf("- %s: mean %.3f, std %.3f, range [%.3f, %.3f]\n", name, ax.Mean, ax.StdDev, ax.Min, ax.Max)
	}

	fmt.Println("\nAffine to RAS+mm:")
	for _, row := range s.AffineToRASMM {
		fmt.Printf("  %9.4f %9.4f %9.4f %9.4f\n", row[0], row[1], row[2], row[3])
	}
}
