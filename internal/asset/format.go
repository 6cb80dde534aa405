package asset

// Format is the target texture encoding for image assets.
type Format string

const (
	FormatDxt1     Format = "Dxt1"
	FormatDxt3     Format = "Dxt3"
	FormatDxt5     Format = "Dxt5"
	FormatRgb8     Format = "Rgb8"
	FormatRgba8    Format = "Rgba8"
	FormatSrgbDxt1 Format = "SrgbDxt1"
	FormatSrgbDxt3 Format = "SrgbDxt3"
	FormatSrgbDxt5 Format = "SrgbDxt5"
	FormatSrgb8    Format = "Srgb8"
	FormatSrgb8A8  Format = "Srgb8A8"
	FormatR8       Format = "R8"
	FormatBC6H     Format = "BC6H"
	FormatBC7      Format = "BC7"
	FormatSrgbBC7  Format = "SrgbBC7"
)

// formatTokens maps formats to img2bf --format tokens.
//
// Srgb8A8 maps to "dxt1". That is wrong (it should be an srgb token) but it
// matches what shipped importers were built against; changing it would make
// previously compiled libraries diverge. Flagged to maintainers.
var formatTokens = map[Format]string{
	FormatDxt1:     "dxt1",
	FormatDxt3:     "dxt3",
	FormatDxt5:     "dxt5",
	FormatRgb8:     "rgb",
	FormatRgba8:    "rgba",
	FormatSrgbDxt1: "srgb_dxt1",
	FormatSrgbDxt3: "srgb_dxt3",
	FormatSrgbDxt5: "srgb_dxt5",
	FormatSrgb8:    "srgb",
	FormatSrgb8A8:  "dxt1",
	FormatR8:       "r8",
	FormatBC6H:     "bc6h",
	FormatBC7:      "bc7",
	FormatSrgbBC7:  "srgb_bc7",
}

// Token returns the img2bf CLI token for the format, or "" when unknown.
func (f Format) Token() string { return formatTokens[f] }

// Valid reports whether f is a known format.
func (f Format) Valid() bool { _, ok := formatTokens[f]; return ok }

// IndexType selects the mesh index width.
type IndexType string

const (
	IndexU16 IndexType = "U16"
	IndexU32 IndexType = "U32"
)

// Token returns the obj2bf --index-type token.
func (t IndexType) Token() string {
	switch t {
	case IndexU16:
		return "u16"
	case IndexU32:
		return "u32"
	}
	return ""
}

// VertexFormat selects the mesh vertex layout.
type VertexFormat string

const (
	VertexPosition                VertexFormat = "Position"
	VertexPositionNormalUv        VertexFormat = "PositionNormalUv"
	VertexPositionNormalUvTangent VertexFormat = "PositionNormalUvTangent"
)

// Token returns the obj2bf --vertex-format token.
func (v VertexFormat) Token() string {
	switch v {
	case VertexPosition:
		return "p"
	case VertexPositionNormalUv:
		return "pnu"
	case VertexPositionNormalUvTangent:
		return "pnut"
	}
	return ""
}

// BlendMode selects material transparency handling.
type BlendMode string

const (
	BlendOpaque      BlendMode = "Opaque"
	BlendMasked      BlendMode = "Masked"
	BlendTranslucent BlendMode = "Translucent"
)

// Token returns the matcomp --blend-mode token.
func (b BlendMode) Token() string {
	switch b {
	case BlendOpaque:
		return "opaque"
	case BlendMasked:
		return "masked"
	case BlendTranslucent:
		return "translucent"
	}
	return ""
}
