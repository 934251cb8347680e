package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Category is one of the four fixed feedback reasons tracked per day.
type Category int

const (
	CategoryOne Category = iota + 1
	CategoryTwo
	CategoryThree
	CategoryFour
)

// Categories lists every category in column order (one..four).
var Categories = []Category{CategoryOne, CategoryTwo, CategoryThree, CategoryFour}

var (
	ErrInvalidCategory = errors.New("invalid category")
	ErrInvalidScheme   = errors.New("invalid category scheme")
)

var categoryLabels = map[Category]string{
	CategoryOne:   "Hann inte äta",
	CategoryTwo:   "Tog för mycket",
	CategoryThree: "Ogillade maten",
	CategoryFour:  "Slängde inte",
}

var categoryColors = map[Category]string{
	CategoryOne:   "#8884d8",
	CategoryTwo:   "#82ca9d",
	CategoryThree: "#ffc658",
	CategoryFour:  "#ff7f7f",
}

var categoryKeys = map[Category]string{
	CategoryOne:   "one",
	CategoryTwo:   "two",
	CategoryThree: "three",
	CategoryFour:  "four",
}

// Valid reports whether c is one of the four known categories.
func (c Category) Valid() bool {
	return c >= CategoryOne && c <= CategoryFour
}

// Label returns the display label used in tables, legends and reports.
func (c Category) Label() string {
	return categoryLabels[c]
}

// Key returns the column name of the category ("one".."four").
func (c Category) Key() string {
	return categoryKeys[c]
}

// Color returns the chart color bound to the category.
func (c Category) Color() string {
	return categoryColors[c]
}

func (c Category) String() string {
	if !c.Valid() {
		return "Category(" + strconv.Itoa(int(c)) + ")"
	}
	return c.Key()
}

// ParseCategory accepts either the column name ("one") or the number ("1").
func ParseCategory(s string) (Category, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range Categories {
		if s == c.Key() || s == strconv.Itoa(int(c)) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

// Scheme fixes the order in which categories appear in the chart and legend.
// Colors stay bound to the category, so order changes never recolor a slice.
type Scheme struct {
	order []Category
}

// DefaultScheme orders categories 1, 2, 3, 4.
func DefaultScheme() Scheme {
	return Scheme{order: append([]Category(nil), Categories...)}
}

// ParseScheme parses a comma separated order such as "1,3,4,2" or
// "one,three,four,two". Every category must appear exactly once.
func ParseScheme(order string) (Scheme, error) {
	if strings.TrimSpace(order) == "" {
		return DefaultScheme(), nil
	}
	parts := strings.Split(order, ",")
	if len(parts) != len(Categories) {
		return Scheme{}, fmt.Errorf("%w: want %d categories, got %d", ErrInvalidScheme, len(Categories), len(parts))
	}
	seen := make(map[Category]bool, len(parts))
	out := make([]Category, 0, len(parts))
	for _, p := range parts {
		c, err := ParseCategory(p)
		if err != nil {
			return Scheme{}, fmt.Errorf("%w: %v", ErrInvalidScheme, err)
		}
		if seen[c] {
			return Scheme{}, fmt.Errorf("%w: category %s listed twice", ErrInvalidScheme, c)
		}
		seen[c] = true
		out = append(out, c)
	}
	return Scheme{order: out}, nil
}

// Order returns the categories in display order.
func (s Scheme) Order() []Category {
	if len(s.order) == 0 {
		return append([]Category(nil), Categories...)
	}
	return append([]Category(nil), s.order...)
}

func (s Scheme) String() string {
	parts := make([]string, 0, len(Categories))
	for _, c := range s.Order() {
		parts = append(parts, strconv.Itoa(int(c)))
	}
	return strings.Join(parts, ",")
}
