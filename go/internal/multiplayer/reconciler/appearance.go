package reconciler

import (
	"fmt"
	"hash/fnv"
	"math"
)

// Appearance distinguishes remote players visually. It depends only on the
// player id, so a player looks the same across ticks, reconnects and runs.
type Appearance struct {
	Label   string
	Hue     float64 // Degrees in [0, 360)
	Color   uint32  // 0xRRGGBB
	Variant int     // Index into the renderer's hull models
}

// Variants is the number of hull models the renderer offers
const Variants = 4

// AppearanceFor derives the appearance of id. name, when set, becomes the label.
func AppearanceFor(id, name string) Appearance {
	h := fnv.New32a()
	h.Write([]byte(id))
	sum := h.Sum32()

	hue := float64(sum%360) + float64((sum>>9)%100)/100
	return Appearance{
		Label:   labelFor(id, name),
		Hue:     hue,
		Color:   hslToRGB(hue, 0.65, 0.5),
		Variant: int((sum >> 16) % Variants),
	}
}

func labelFor(id, name string) string {
	if name != "" {
		return name
	}
	if len(id) > 6 {
		id = id[:6]
	}
	return fmt.Sprintf("Sailor %s", id)
}

// hslToRGB converts h in degrees and s, l in [0, 1] to a packed 0xRRGGBB
func hslToRGB(h, s, l float64) uint32 {
	c := (1 - math.Abs(2*l-1)) * s
	hp := math.Mod(h, 360) / 60
	x := c * (1 - math.Abs(math.Mod(hp, 2)-1))

	var r, g, b float64
	switch {
	case hp < 1:
		r, g = c, x
	case hp < 2:
		r, g = x, c
	case hp < 3:
		g, b = c, x
	case hp < 4:
		g, b = x, c
	case hp < 5:
		r, b = x, c
	default:
		r, b = c, x
	}

	m := l - c/2
	to8 := func(v float64) uint32 { return uint32(math.Round((v + m) * 255)) }
	return to8(r)<<16 | to8(g)<<8 | to8(b)
}
