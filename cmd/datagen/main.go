package main

import (
	"flag"
	"log"

	"gocanopy/adapters/excel"
	"gocanopy/internal/testkit"
)

// datagen writes a seeded synthetic canopy dataset to an xlsx file,
// usable as INPUT_FILE for the main binary and as a calibration fixture.
func main() {
	var (
		out  = flag.String("out", "canopy_demo.xlsx", "output xlsx path")
		seed = flag.Int64("seed", 42, "generator seed")
	)
	flag.Parse()

	gen := testkit.NewGenerator(*seed)
	observations := gen.Generate(testkit.DefaultScenario())

	if err := excel.WriteObservations(*out, observations); err != nil {
		log.Fatalf("Failed to write dataset: %v", err)
	}
	log.Printf("Wrote %d observations to %s (seed %d)", len(observations), *out, *seed)
}
