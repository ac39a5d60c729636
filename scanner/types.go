// Package scanner implements the in-process memory-scanning engine: the
// first-scan/rescan comparator family, its SIMD fast path, the parallel
// region walker, and the Scanner facade that ties them together. A Scanner
// locates addresses in the host's own address space whose contents match a
// caller-supplied pattern, then narrows that candidate set as the host's
// state changes.
package scanner

import "fmt"

// Resource limits, mirrored from the original engine's compile-time
// constants. SCAN_BUFFER_SIZE must exceed both size caps so that any single
// sequence or struct pattern fits inside one scan buffer.
const (
	ScanBufferSize  = 65536
	ChunkThreshold  = 4096
	MaxSequenceSize = 4096
	MaxStructSize   = 8192
)

func init() {
	if ScanBufferSize <= MaxSequenceSize {
		panic("scanner: ScanBufferSize must exceed MaxSequenceSize")
	}
	if ScanBufferSize <= MaxStructSize {
		panic("scanner: ScanBufferSize must exceed MaxStructSize")
	}
}

const (
	floatEpsilon  = 1e-4
	doubleEpsilon = 1e-8
)

// DataType is the closed set of value representations a Scanner can search
// for. The type is fixed at Scanner construction and never changes.
type DataType int

const (
	Byte DataType = iota
	Int
	Float
	Double
	Bool
	String
	ByteArray
	Struct
)

func (d DataType) String() string {
	switch d {
	case Byte:
		return "byte"
	case Int:
		return "int"
	case Float:
		return "float"
	case Double:
		return "double"
	case Bool:
		return "bool"
	case String:
		return "string"
	case ByteArray:
		return "byte_array"
	case Struct:
		return "struct"
	default:
		return fmt.Sprintf("DataType(%d)", int(d))
	}
}

// IsScalar reports whether d is one of the fixed-width scalar types
// (i.e. not String/ByteArray/Struct).
func (d DataType) IsScalar() bool {
	switch d {
	case Byte, Int, Float, Double, Bool:
		return true
	default:
		return false
	}
}

// Size returns the fixed width in bytes of a scalar type. Panics for
// non-scalar types, which have no fixed width.
func (d DataType) Size() int {
	switch d {
	case Byte, Bool:
		return 1
	case Int, Float:
		return 4
	case Double:
		return 8
	default:
		panic(fmt.Sprintf("scanner: %s has no fixed scalar size", d))
	}
}

// ScanOp is the closed set of comparison operators. Increased, Decreased,
// Changed, and Unchanged all require a prior scan, since they compare
// against a previously observed value.
type ScanOp int

const (
	Exact ScanOp = iota
	Not
	Increased
	Decreased
	Changed
	Unchanged
)

func (op ScanOp) String() string {
	switch op {
	case Exact:
		return "exact"
	case Not:
		return "not"
	case Increased:
		return "increased"
	case Decreased:
		return "decreased"
	case Changed:
		return "changed"
	case Unchanged:
		return "unchanged"
	default:
		return fmt.Sprintf("ScanOp(%d)", int(op))
	}
}

// RequiresPriorScan reports whether op compares against a previously
// observed value and therefore cannot appear in a first scan.
func (op ScanOp) RequiresPriorScan() bool {
	switch op {
	case Increased, Decreased, Changed, Unchanged:
		return true
	default:
		return false
	}
}

// ScanValue is a fixed-size union carrying the current representation of a
// scalar result. The active member is determined by the owning Scanner's
// DataType, not by a per-value tag — every Result in a scan shares the same
// type, so tagging each value individually would be redundant.
type ScanValue struct {
	b    byte
	i    int32
	f    float32
	d    float64
	boolV bool
}

func ByteValue(v byte) ScanValue       { return ScanValue{b: v} }
func IntValue(v int32) ScanValue       { return ScanValue{i: v} }
func FloatValue(v float32) ScanValue   { return ScanValue{f: v} }
func DoubleValue(v float64) ScanValue  { return ScanValue{d: v} }
func BoolValue(v bool) ScanValue       { return ScanValue{boolV: v} }

func (v ScanValue) AsByte() byte       { return v.b }
func (v ScanValue) AsInt() int32       { return v.i }
func (v ScanValue) AsFloat() float32   { return v.f }
func (v ScanValue) AsDouble() float64  { return v.d }
func (v ScanValue) AsBool() bool       { return v.boolV }

// decodeScanValue reads dt's representation from the start of buf.
func decodeScanValue(dt DataType, buf []byte) ScanValue {
	switch dt {
	case Byte:
		return ByteValue(buf[0])
	case Int:
		return IntValue(int32(le32(buf)))
	case Float:
		return FloatValue(math32FromBits(le32(buf)))
	case Double:
		return DoubleValue(math64FromBits(le64(buf)))
	case Bool:
		return BoolValue(buf[0] != 0)
	default:
		panic(fmt.Sprintf("scanner: %s has no scalar representation", dt))
	}
}

// Result is a single candidate address and its observed value(s). Sequence
// and struct results only ever populate Address; Value/OldValue/HasOld stay
// zero. Bytes is populated on demand, by read_values, for sequence scanners'
// Not results only — it is never set by a scan itself.
type Result struct {
	Address  uint64
	Value    ScanValue
	OldValue ScanValue
	HasOld   bool
	Bytes    []byte
}

// SearchSequence is a bounded byte pattern used by the sequence comparator.
type SearchSequence struct {
	Bytes []byte
}

// BasicField is one scalar field of a StructPattern, resolved relative to
// the pattern's key byte.
type BasicField struct {
	OffsetFromKey int32
	Type          DataType
	Value         ScanValue
}

// SequenceField is one byte-run field of a StructPattern, resolved relative
// to the pattern's key byte.
type SequenceField struct {
	OffsetFromKey int32
	Bytes         []byte
}

// StructPattern is a composite target anchored on one distinguished key
// byte. SizeBeforeKey/SizeFromKey/TotalSize are derived incrementally as
// fields are added via AddBasicField/AddSequenceField, mirroring the
// original engine's size bookkeeping.
type StructPattern struct {
	SearchKey         byte
	KeyOffsetFromBase int32

	BasicFields    []BasicField
	SequenceFields []SequenceField

	SizeBeforeKey int32
	SizeFromKey   int32
}

// NewStructPattern starts a struct pattern anchored at searchKey,
// keyOffsetFromBase bytes from the struct's conceptual base address.
// SizeFromKey starts at 1 to cover the key byte itself.
func NewStructPattern(searchKey byte, keyOffsetFromBase int32) *StructPattern {
	return &StructPattern{
		SearchKey:         searchKey,
		KeyOffsetFromBase: keyOffsetFromBase,
		SizeFromKey:       1,
	}
}

// TotalSize is SizeBeforeKey + SizeFromKey.
func (p *StructPattern) TotalSize() int32 { return p.SizeBeforeKey + p.SizeFromKey }

func (p *StructPattern) growFor(offsetFromKey int32, fieldSize int32) {
	if offsetFromKey < 0 {
		before := -offsetFromKey
		if before > p.SizeBeforeKey {
			p.SizeBeforeKey = before
		}
		return
	}
	from := offsetFromKey + fieldSize
	if from > p.SizeFromKey {
		p.SizeFromKey = from
	}
}

// AddBasicField appends a scalar field and grows the pattern's bounds to
// cover it.
func (p *StructPattern) AddBasicField(offsetFromKey int32, dt DataType, value ScanValue) {
	p.BasicFields = append(p.BasicFields, BasicField{OffsetFromKey: offsetFromKey, Type: dt, Value: value})
	p.growFor(offsetFromKey, int32(dt.Size()))
}

// AddSequenceField appends a byte-run field and grows the pattern's bounds
// to cover it.
func (p *StructPattern) AddSequenceField(offsetFromKey int32, bytes []byte) {
	p.SequenceFields = append(p.SequenceFields, SequenceField{OffsetFromKey: offsetFromKey, Bytes: bytes})
	p.growFor(offsetFromKey, int32(len(bytes)))
}
