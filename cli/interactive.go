package cli

import (
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"

	"evstudy.dev/zmap/frame"
)

const (
	networkFrame    = "Network (x,y)"
	geographicFrame = "Geographic (lon,lat)"
)

// parsePair reads two comma or space separated numbers.
func parsePair(s string) (orb.Point, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) != 2 {
		return orb.Point{}, errors.Errorf("expected two numbers, got %q", s)
	}
	var p orb.Point
	for i, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return orb.Point{}, errors.Wrapf(err, "invalid number %q", field)
		}
		p[i] = v
	}
	return p, nil
}

// promptPoint asks for a point on the terminal and returns it in the
// network frame.
func promptPoint(t *frame.Transformer) (orb.Point, error) {
	selectFrame := promptui.Select{
		Label: "Coordinate frame",
		Items: []string{networkFrame, geographicFrame},
	}
	_, result, err := selectFrame.Run()
	if err != nil {
		return orb.Point{}, errors.Wrap(err, "prompt failed")
	}

	label := "x,y"
	if result == geographicFrame {
		label = "lon,lat"
	}
	prompt := promptui.Prompt{
		Label: label,
		Validate: func(s string) error {
			_, err := parsePair(s)
			return err
		},
	}
	input, err := prompt.Run()
	if err != nil {
		return orb.Point{}, errors.Wrap(err, "prompt failed")
	}
	p, err := parsePair(input)
	if err != nil {
		return orb.Point{}, err
	}
	if result == geographicFrame {
		return t.FromGeographic(p)
	}
	return p, nil
}
