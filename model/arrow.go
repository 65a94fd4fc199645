package model

import "fmt"

// ArrowType enumerates the closed set of edge relationship kinds. Validation
// and rendering dispatch on the tag, never on the raw source symbol.
type ArrowType int

const (
	ArrowAssociation ArrowType = iota // ->
	ArrowDependency                   // -->
	ArrowInheritance                  // <|--
	ArrowComposition                  // *-->
	ArrowAggregation                  // o-->
	ArrowBidirectional                // <-->
	ArrowEmphasis                     // =>
)

var arrowNames = map[ArrowType]string{
	ArrowAssociation:   "association",
	ArrowDependency:    "dependency",
	ArrowInheritance:   "inheritance",
	ArrowComposition:   "composition",
	ArrowAggregation:   "aggregation",
	ArrowBidirectional: "bidirectional",
	ArrowEmphasis:      "emphasis",
}

var arrowSymbols = map[ArrowType]string{
	ArrowAssociation:   "->",
	ArrowDependency:    "-->",
	ArrowInheritance:   "<|--",
	ArrowComposition:   "*-->",
	ArrowAggregation:   "o-->",
	ArrowBidirectional: "<-->",
	ArrowEmphasis:      "=>",
}

// String returns the canonical kind name used in the JSON model.
func (a ArrowType) String() string {
	if name, ok := arrowNames[a]; ok {
		return name
	}
	return fmt.Sprintf("arrow(%d)", int(a))
}

// Symbol returns the concrete source syntax for the arrow.
func (a ArrowType) Symbol() string {
	return arrowSymbols[a]
}

// Style returns the diagram style hint carried in the canonical JSON form.
func (a ArrowType) Style() string {
	switch a {
	case ArrowDependency:
		return "dashed"
	case ArrowEmphasis:
		return "thick"
	default:
		return "solid"
	}
}

// ParseArrowName maps a canonical kind name back to its ArrowType.
func ParseArrowName(name string) (ArrowType, error) {
	for arrow, n := range arrowNames {
		if n == name {
			return arrow, nil
		}
	}
	return ArrowAssociation, fmt.Errorf("unknown arrow type %q", name)
}

// ParseArrowSymbol maps a source syntax symbol to its ArrowType.
func ParseArrowSymbol(symbol string) (ArrowType, error) {
	for arrow, s := range arrowSymbols {
		if s == symbol {
			return arrow, nil
		}
	}
	return ArrowAssociation, fmt.Errorf("unknown arrow symbol %q", symbol)
}
