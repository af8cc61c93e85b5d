package pipeline

import (
	"image"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// Common Types
// =============================================================================

// Dimensions is a pixel width and height.
type Dimensions struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Valid reports whether both axes are strictly positive.
func (d Dimensions) Valid() bool {
	return d.Width > 0 && d.Height > 0
}

// FormState maps a field name to its current value.
// Values are kept as strings, the way form inputs produce them.
type FormState map[string]string

// Clone returns an independent copy of the state.
func (s FormState) Clone() FormState {
	out := make(FormState, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Mode is the editing session's position in the export state machine.
type Mode string

const (
	ModeEdit       Mode = "edit"
	ModePreview    Mode = "preview"
	ModeGenerating Mode = "generating"
	ModeDone       Mode = "done"
)

// =============================================================================
// Template Types
// =============================================================================

// FieldType enumerates the supported form inputs.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldDate     FieldType = "date"
	FieldTime     FieldType = "time"
	FieldNumber   FieldType = "number"
	FieldSelect   FieldType = "select"
)

// Valid reports whether t is one of the known field types. Schemas that leave
// the type empty are read as text and are checked by the caller.
func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldTextarea, FieldDate, FieldTime, FieldNumber, FieldSelect:
		return true
	}
	return false
}

// FieldSpec describes one form input bound into a template.
type FieldSpec struct {
	Name         string    `json:"name" yaml:"name"`
	Label        string    `json:"label" yaml:"label"`
	Type         FieldType `json:"type" yaml:"type"`
	Required     bool      `json:"required" yaml:"required"`
	MaxLength    int       `json:"maxLength,omitempty" yaml:"max_length,omitempty"`
	Placeholder  string    `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Options      []string  `json:"options,omitempty" yaml:"options,omitempty"`
	Formula      string    `json:"formula,omitempty" yaml:"formula,omitempty"`
	DefaultValue any       `json:"defaultValue,omitempty" yaml:"default_value,omitempty"`
	ReadOnly     bool      `json:"readOnly,omitempty" yaml:"read_only,omitempty"`
}

// IsDerived reports whether the field is computed from a formula.
func (f FieldSpec) IsDerived() bool {
	return strings.TrimSpace(f.Formula) != ""
}

// DefaultString returns the default value in its form-state representation.
// Schemas stored as JSON may carry numbers as well as strings.
func (f FieldSpec) DefaultString() string {
	switch v := f.DefaultValue.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// TemplateDefinition is an administrator-authored rendering recipe.
type TemplateDefinition struct {
	ID            string      `json:"id" yaml:"id"`
	ContentTypeID string      `json:"type_contenu_id" yaml:"content_type_id"`
	Name          string      `json:"nom" yaml:"name"`
	Description   string      `json:"description,omitempty" yaml:"description,omitempty"`
	HTMLStructure string      `json:"html_structure" yaml:"html_structure"`
	CSSStyles     string      `json:"css_styles" yaml:"css_styles"`
	FieldSchema   []FieldSpec `json:"champs_config" yaml:"fields"`
	PreviewURL    string      `json:"preview_url,omitempty" yaml:"preview_url,omitempty"`
	Width         int         `json:"largeur" yaml:"width"`
	Height        int         `json:"hauteur" yaml:"height"`
	Format        string      `json:"format" yaml:"format"`
	Active        bool        `json:"actif" yaml:"active"`
	Order         int         `json:"ordre" yaml:"order"`
	CreatedBy     string      `json:"created_by,omitempty" yaml:"created_by,omitempty"`
}

// Validate checks that the template can be rendered at all.
func (t TemplateDefinition) Validate() error {
	if strings.TrimSpace(t.HTMLStructure) == "" {
		return NewError(KindValidation, "template %q has no HTML structure", t.Name)
	}
	if strings.TrimSpace(t.CSSStyles) == "" {
		return NewError(KindValidation, "template %q has no CSS styles", t.Name)
	}
	seen := make(map[string]bool, len(t.FieldSchema))
	for _, f := range t.FieldSchema {
		if f.Name == "" {
			return NewError(KindValidation, "template %q has a field without a name", t.Name)
		}
		if seen[f.Name] {
			return NewError(KindValidation, "template %q declares field %q twice", t.Name, f.Name)
		}
		seen[f.Name] = true
		if f.Type != "" && !f.Type.Valid() {
			return NewError(KindValidation, "template %q field %q has unknown type %q", t.Name, f.Name, f.Type)
		}
	}
	return nil
}

// FallbackDimensions returns the stored database width and height.
func (t TemplateDefinition) FallbackDimensions() Dimensions {
	return Dimensions{Width: t.Width, Height: t.Height}
}

// ContentType is a category of posters users pick from.
type ContentType struct {
	ID          string `json:"id"`
	Name        string `json:"nom"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icone,omitempty"`
	Order       int    `json:"ordre"`
	Active      bool   `json:"actif"`
}

// =============================================================================
// Record Types
// =============================================================================

// ExportFormat is the encoding of an exported poster.
type ExportFormat string

const (
	FormatPNG ExportFormat = "png"
)

// GeneratedVisualRecord is the persisted receipt of one export.
type GeneratedVisualRecord struct {
	ID           string       `json:"id"`
	TemplateID   string       `json:"template_id"`
	UserID       string       `json:"user_id"`
	Content      FormState    `json:"contenu_json"`
	ImageURL     string       `json:"image_url,omitempty"`
	FormatExport ExportFormat `json:"format_export"`
	Width        int          `json:"largeur"`
	Height       int          `json:"hauteur"`
	FileSize     int64        `json:"taille_fichier"`
	CreatedAt    time.Time    `json:"created_at"`
}

// UserProfile is the application-side profile linked to an account.
type UserProfile struct {
	ID         string    `json:"id"`
	FullName   string    `json:"nom_complet"`
	Delegation string    `json:"delegation"`
	Role       string    `json:"role"`
	AvatarURL  string    `json:"avatar_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// =============================================================================
// Asset Types
// =============================================================================

// AssetType is the category the classifier assigns to an uploaded image.
type AssetType string

const (
	AssetBackground AssetType = "background"
	AssetLogo       AssetType = "logo"
	AssetIcon       AssetType = "icon"
	AssetDecoration AssetType = "decoration"
)

// AssetFile is an image submitted for classification.
type AssetFile struct {
	Name      string
	MediaType string
	Data      []byte
}

// Size returns the byte size of the file.
func (f AssetFile) Size() int64 {
	return int64(len(f.Data))
}

// Asset is a classified image available for reuse inside templates.
type Asset struct {
	ID           string    `json:"id"`
	Path         string    `json:"path,omitempty"`
	URL          string    `json:"url,omitempty"`
	Name         string    `json:"name"`
	MediaType    string    `json:"media_type"`
	Type         AssetType `json:"type"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	Size         int64     `json:"size"`
	AutoDetected bool      `json:"auto_detected"`
	Priority     int       `json:"priority"`
}

// =============================================================================
// Stage Inputs and Results
// =============================================================================

// ClassifyInput contains the files to classify.
type ClassifyInput struct {
	Files []AssetFile
	// AbortOnError stops the batch at the first undecodable file
	// instead of skipping it.
	AbortOnError bool
}

// ClassifyResult contains the classified assets sorted by priority.
type ClassifyResult struct {
	Assets   []Asset
	Rejected []string        // files excluded by the media type allow-list
	Failed   map[string]error // files that could not be decoded
}

// FormulaInput contains the schema and the values to evaluate against.
type FormulaInput struct {
	Fields []FieldSpec
	Values FormState
}

// FormulaResult contains the derived-field updates, empty when nothing changed.
type FormulaResult struct {
	Updates FormState
	Passes  int
	Cyclic  []string
}

// InterpolateInput contains the markup and the values to bind into it.
type InterpolateInput struct {
	HTML   string
	Values FormState
}

// InterpolateResult contains the final markup.
type InterpolateResult struct {
	HTML string
}

// DimensionInput contains the sources consulted at template load.
type DimensionInput struct {
	CSS      string
	Fallback Dimensions
}

// DimensionResult contains the resolved dimensions and where they came from.
type DimensionResult struct {
	Dimensions Dimensions
	Source     DimensionSource
	Selector   string
}

// DimensionSource names the source of the effective dimensions.
type DimensionSource string

const (
	SourceCSS      DimensionSource = "css"
	SourceDatabase DimensionSource = "database"
	SourceImage    DimensionSource = "image"
)

// ExportInput contains everything the exporter needs for one export.
type ExportInput struct {
	Template   TemplateDefinition
	Markup     string
	Values     FormState
	Dimensions Dimensions
}

// ExportResult describes a completed export.
type ExportResult struct {
	Filename string
	Location string
	Image    image.Image
	Data     []byte
	Record   GeneratedVisualRecord
	// Skipped is set when the request was ignored because an export was already running.
	Skipped bool
}
