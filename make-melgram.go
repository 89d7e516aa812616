// Command make-melgram renders log-mel spectrogram PNGs for recorded voice
// clips, a quick visual check of microphone quality before enrolling them.
// The mel frames come from the same analysis pipeline the feature extractor
// uses, so the image shows exactly what the matcher gets to see.
//
//	go run make-melgram.go -in recordings -out melgrams
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/eligwz/spectrogram"

	"voicegate/internal/audio"
	"voicegate/internal/feature"
)

func main() {
	inputDir := flag.String("in", "recordings", "directory of WAV clips")
	outputDir := flag.String("out", "melgrams", "directory for PNG output")
	flag.Parse()

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatal(err)
	}

	extractor, err := feature.NewExtractor(feature.Config{})
	if err != nil {
		log.Fatal(err)
	}

	err = filepath.WalkDir(*inputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".wav" {
			return nil
		}

		fmt.Printf("Processing %s...\n", path)

		clip, err := audio.ReadClip(path)
		if err != nil {
			log.Printf("Error reading %s: %v", path, err)
			return nil
		}

		rows, err := extractor.LogMel(clip)
		if err != nil {
			log.Printf("Error analyzing %s: %v", path, err)
			return nil
		}

		if len(rows) == 0 {
			log.Printf("Clip %s too short for a single analysis frame", path)
			return nil
		}

		fmt.Printf("Computed %d mel frames\n", len(rows))

		outputPath := filepath.Join(*outputDir, filepath.Base(path)+".png")
		if err := saveMelgram(rows, outputPath); err != nil {
			log.Printf("Error saving PNG for %s: %v", outputPath, err)
			return nil
		}

		fmt.Printf("Saved mel spectrogram to %s\n", outputPath)
		return nil
	})

	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("Done!")
}

// saveMelgram paints log mel energies as a time-frequency heat image: time
// left to right, low mel filters at the bottom, brightness following energy.
func saveMelgram(rows [][]float64, outputPath string) error {
	numFrames := len(rows)
	numFilters := len(rows[0])

	// Short voice clips need less horizontal resolution than full songs.
	width := 1024
	if numFrames < width {
		width = numFrames
	}
	height := 256
	img := spectrogram.NewImage128(image.Rect(0, 0, width, height))

	black := spectrogram.ParseColor("000000")
	draw.Draw(img, img.Bounds(), image.NewUniform(black), image.Point{}, draw.Src)

	lo, hi := rows[0][0], rows[0][0]
	for _, row := range rows {
		for _, v := range row {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	if hi <= lo {
		hi = lo + 1
	}

	for x := 0; x < width; x++ {
		row := rows[x*numFrames/width]
		for y := 0; y < height; y++ {
			m := (height - 1 - y) * numFilters / height
			v := (row[m] - lo) / (hi - lo)
			img.Set(x, y, color.Gray{Y: uint8(v * 255)})
		}
	}

	return spectrogram.SavePng(img, outputPath)
}
