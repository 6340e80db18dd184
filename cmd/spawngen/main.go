// spawngen writes a random spawn list for a zone of the given size.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"

	"github.com/l1jgo/sectorsim/internal/data"
)

var (
	kinds  = []string{data.KindDrifter, data.KindDrifter, data.KindDrifter, data.KindMarker}
	glyphs = []string{"o", "*", "+", "x", "@", "%"}
	colors = []string{"red", "green", "yellow", "blue", "fuchsia", "aqua", "white"}
)

func main() {
	if len(os.Args) < 4 {
		fmt.Fprintln(os.Stderr, "Usage: spawngen <output.yaml> <width> <height> [groups] [seed]")
		os.Exit(1)
	}
	width, err1 := strconv.Atoi(os.Args[2])
	height, err2 := strconv.Atoi(os.Args[3])
	if err1 != nil || err2 != nil || width <= 0 || height <= 0 {
		fmt.Fprintln(os.Stderr, "width and height must be positive integers")
		os.Exit(1)
	}
	groups := 8
	if len(os.Args) > 4 {
		n, err := strconv.Atoi(os.Args[4])
		if err != nil || n <= 0 {
			fmt.Fprintln(os.Stderr, "groups must be a positive integer")
			os.Exit(1)
		}
		groups = n
	}
	seed := int64(1)
	if len(os.Args) > 5 {
		n, err := strconv.ParseInt(os.Args[5], 10, 64)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		seed = n
	}

	list := generate(rand.New(rand.NewSource(seed)), width, height, groups)
	raw, err := list.Marshal()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	// Validate what we are about to write.
	if _, err := data.ParseSpawnList(raw); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	out, err := os.Create(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer out.Close()

	fmt.Fprintf(out, "# Spawn list, generated for %dx%d (seed %d, %d sprites)\n", width, height, seed, list.Total())
	if _, err := out.Write(raw); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %d groups (%d sprites) to %s\n", len(list.Groups), list.Total(), os.Args[1])
}

func generate(rng *rand.Rand, width, height, groups int) *data.SpawnList {
	list := &data.SpawnList{}
	for i := range groups {
		w := max(width/(2+rng.Intn(6)), 1)
		h := max(height/(2+rng.Intn(6)), 1)
		g := data.SpawnGroup{
			Name:   fmt.Sprintf("group-%02d", i+1),
			Kind:   kinds[rng.Intn(len(kinds))],
			Count:  10 + rng.Intn(200),
			Area:   data.Area{X: rng.Intn(width - w + 1), Y: rng.Intn(height - h + 1), W: w, H: h},
			Width:  2 + rng.Intn(14),
			Height: 2 + rng.Intn(14),
			Layer:  float64(rng.Intn(40)) + float64(rng.Intn(10))/10,
			Glyph:  glyphs[rng.Intn(len(glyphs))],
			Color:  colors[rng.Intn(len(colors))],
		}
		if g.Kind == data.KindDrifter {
			g.Speed = 1 + rng.Intn(4)
			g.Collide = rng.Intn(3) > 0
		} else {
			g.Count = max(g.Count/10, 1)
		}
		list.Groups = append(list.Groups, g)
	}

	// Sort by layer so the file reads bottom to top.
	sort.SliceStable(list.Groups, func(i, j int) bool {
		return list.Groups[i].Layer < list.Groups[j].Layer
	})
	return list
}
