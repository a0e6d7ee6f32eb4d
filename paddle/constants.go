package paddle

const (
	// RuntimeAPIVersion is the Paddle inference C API generation this binding
	// mirrors. The legacy PD_* surface has no version query entry point, so
	// this tracks the runtime line validated by CI and examples.
	RuntimeAPIVersion = "2.0.0"
)

// DataType mirrors PD_DataType in the Paddle inference C API.
type DataType int32

const (
	DataTypeFloat32 DataType = iota
	DataTypeInt32
	DataTypeInt64
	DataTypeUint8
	DataTypeUnknown
)

// Size returns the byte width of a single element, or 0 for unknown types.
func (dt DataType) Size() int {
	switch dt {
	case DataTypeFloat32, DataTypeInt32:
		return 4
	case DataTypeInt64:
		return 8
	case DataTypeUint8:
		return 1
	default:
		return 0
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case DataTypeFloat32:
		return "float32"
	case DataTypeInt32:
		return "int32"
	case DataTypeInt64:
		return "int64"
	case DataTypeUint8:
		return "uint8"
	default:
		return "unknown"
	}
}

// Precision mirrors PD_Precision, the compute precision hint used by
// TensorRT-style config options.
type Precision int32

const (
	PrecisionFloat32 Precision = iota
	PrecisionInt8
	PrecisionHalf
)
