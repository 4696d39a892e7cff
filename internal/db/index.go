package db

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// StorageType is the key type an FT index covers.
type StorageType string

// StorageHash is the only layout docvault indexes.
const StorageHash StorageType = "HASH"

// DistanceMetric for vector fields.
type DistanceMetric string

// Distance metrics.
const (
	DistanceL2     DistanceMetric = "L2"
	DistanceCosine DistanceMetric = "COSINE"
)

// VectorAlgorithm for vector fields.
type VectorAlgorithm string

// Vector algorithms. FLAT is brute force and the engine default.
const (
	VectorHNSW VectorAlgorithm = "HNSW"
	VectorFlat VectorAlgorithm = "FLAT"
)

// IndexFieldType enumerates the schema field kinds docvault uses.
type IndexFieldType int

// Field kinds.
const (
	IndexFieldNumeric IndexFieldType = iota
	IndexFieldTag
	IndexFieldText
	IndexFieldVector
)

func (t IndexFieldType) String() string {
	switch t {
	case IndexFieldNumeric:
		return "NUMERIC"
	case IndexFieldTag:
		return "TAG"
	case IndexFieldText:
		return "TEXT"
	case IndexFieldVector:
		return "VECTOR"
	default:
		return "UNKNOWN(" + strconv.Itoa(int(t)) + ")"
	}
}

// IndexField is one entry of an FT schema.
type IndexField struct {
	Name  string
	Alias string
	Type  IndexFieldType

	TextWeight   float64 // 0 keeps the engine default of 1
	TagSeparator string
	Sortable     bool

	VectorAlgo        VectorAlgorithm
	VectorDim         int
	VectorDistance    DistanceMetric
	VectorM           int // HNSW only
	VectorEFConstruct int // HNSW only
}

// Attribute returns the name the field is queried by.
func (f *IndexField) Attribute() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

// IndexDefinition is a complete FT.CREATE request.
type IndexDefinition struct {
	Name        string
	StorageType StorageType
	Prefixes    []string
	Fields      []IndexField
}

// Attributes lists the queryable attribute names in schema order.
func (idx *IndexDefinition) Attributes() []string {
	out := make([]string, len(idx.Fields))
	for i := range idx.Fields {
		out[i] = idx.Fields[i].Attribute()
	}
	return out
}

var identifierRE = regexp.MustCompile(`^[a-zA-Z0-9_:-]+$`)

// IsValidIdentifier reports whether s is usable as an index name.
func IsValidIdentifier(s string) bool {
	return identifierRE.MatchString(s)
}

// Validate reports every problem with the definition at once.
func (idx *IndexDefinition) Validate() error {
	var errs []error
	switch {
	case idx.Name == "":
		errs = append(errs, errors.New("index name is required"))
	case !IsValidIdentifier(idx.Name):
		errs = append(errs, fmt.Errorf("index name %q contains invalid characters", idx.Name))
	}
	if len(idx.Fields) == 0 {
		errs = append(errs, errors.New("at least one field is required"))
	}

	seen := make(map[string]struct{}, len(idx.Fields))
	for i := range idx.Fields {
		f := &idx.Fields[i]
		if f.Name == "" {
			errs = append(errs, fmt.Errorf("field %d: name is required", i))
			continue
		}
		attr := f.Attribute()
		if _, dup := seen[attr]; dup {
			errs = append(errs, fmt.Errorf("duplicate field name: %s", attr))
		}
		seen[attr] = struct{}{}

		switch {
		case f.Type == IndexFieldVector && f.VectorDim <= 0:
			errs = append(errs, fmt.Errorf("field %s: vector field requires positive DIM", attr))
		case f.TextWeight < 0:
			errs = append(errs, fmt.Errorf("field %s: text weight must not be negative", attr))
		case f.Type > IndexFieldVector || f.Type < IndexFieldNumeric:
			errs = append(errs, fmt.Errorf("field %s: unknown field type %s", attr, f.Type))
		}
	}
	return errors.Join(errs...)
}

// CreateArgs renders the FT.CREATE arguments that follow the command name.
func (idx *IndexDefinition) CreateArgs() ([]string, error) {
	if err := idx.Validate(); err != nil {
		return nil, err
	}

	storage := idx.StorageType
	if storage == "" {
		storage = StorageHash
	}
	args := []string{idx.Name, "ON", string(storage)}
	if len(idx.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(idx.Prefixes)))
		args = append(args, idx.Prefixes...)
	}

	args = append(args, "SCHEMA")
	for i := range idx.Fields {
		args = append(args, idx.Fields[i].schemaArgs()...)
	}
	return args, nil
}

// String renders the FT.CREATE command, or the validation error.
func (idx *IndexDefinition) String() string {
	args, err := idx.CreateArgs()
	if err != nil {
		return "invalid index " + strconv.Quote(idx.Name) + ": " + err.Error()
	}
	return "FT.CREATE " + strings.Join(args, " ")
}

func (f *IndexField) schemaArgs() []string {
	args := []string{f.Name}
	if f.Alias != "" {
		args = append(args, "AS", f.Alias)
	}
	args = append(args, f.Type.String())

	switch f.Type {
	case IndexFieldText:
		if f.TextWeight > 0 {
			args = append(args, "WEIGHT", strconv.FormatFloat(f.TextWeight, 'g', -1, 64))
		}
	case IndexFieldTag:
		if f.TagSeparator != "" {
			args = append(args, "SEPARATOR", f.TagSeparator)
		}
	case IndexFieldNumeric:
		if f.Sortable {
			args = append(args, "SORTABLE")
		}
	case IndexFieldVector:
		args = append(args, f.vectorArgs()...)
	}
	return args
}

// vectorArgs renders "<algo> <n> <attr pairs...>".
func (f *IndexField) vectorArgs() []string {
	algo := f.VectorAlgo
	if algo == "" {
		algo = VectorFlat
	}
	distance := f.VectorDistance
	if distance == "" {
		distance = DistanceCosine
	}

	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(f.VectorDim),
		"DISTANCE_METRIC", string(distance),
	}
	if algo == VectorHNSW {
		if f.VectorM > 0 {
			attrs = append(attrs, "M", strconv.Itoa(f.VectorM))
		}
		if f.VectorEFConstruct > 0 {
			attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(f.VectorEFConstruct))
		}
	}
	return append([]string{string(algo), strconv.Itoa(len(attrs))}, attrs...)
}
