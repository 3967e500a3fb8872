package cli

import (
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/regions/regiontree"
)

// splitCoords splits "x,z" or "x,z,y" into its trimmed parts.
func splitCoords(s string) ([]string, error) {
	parts := lo.Map(strings.Split(s, ","), func(part string, _ int) string {
		return strings.TrimSpace(part)
	})
	if len(parts) != 2 && len(parts) != 3 {
		return nil, errors.Errorf("%q is not x,z or x,z,y", s)
	}
	return parts, nil
}

func parsePoint(s string) (regiontree.Point, error) {
	parts, err := splitCoords(s)
	if err != nil {
		return regiontree.Point{}, err
	}
	coords := make([]int, 3)
	for i, part := range parts {
		if coords[i], err = strconv.Atoi(part); err != nil {
			return regiontree.Point{}, errors.Wrapf(err, "parsing %q", s)
		}
	}
	return regiontree.Point{X: coords[0], Z: coords[1], Y: coords[2]}, nil
}

func parsePoints(ss []string) ([]regiontree.Point, error) {
	points := make([]regiontree.Point, 0, len(ss))
	for _, s := range ss {
		p, err := parsePoint(s)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

// parseBox parses "min:max" with both corners as points.
func parseBox(s string) (regiontree.Box, error) {
	lower, upper, ok := strings.Cut(s, ":")
	if !ok {
		return regiontree.Box{}, errors.Errorf("%q is not min:max", s)
	}
	a, err := parsePoint(lower)
	if err != nil {
		return regiontree.Box{}, err
	}
	b, err := parsePoint(upper)
	if err != nil {
		return regiontree.Box{}, err
	}
	return regiontree.NewBox(a, b), nil
}

func parseBoxes(ss []string) ([]regiontree.Box, error) {
	boxes := make([]regiontree.Box, 0, len(ss))
	for _, s := range ss {
		b, err := parseBox(s)
		if err != nil {
			return nil, err
		}
		boxes = append(boxes, b)
	}
	return boxes, nil
}

// parseVector parses a float position "x,z[,y]".
func parseVector(s string) (r3.Vector, error) {
	parts, err := splitCoords(s)
	if err != nil {
		return r3.Vector{}, err
	}
	coords := make([]float64, 3)
	for i, part := range parts {
		if coords[i], err = strconv.ParseFloat(part, 64); err != nil {
			return r3.Vector{}, errors.Wrapf(err, "parsing %q", s)
		}
	}
	return r3.Vector{X: coords[0], Z: coords[1], Y: coords[2]}, nil
}
