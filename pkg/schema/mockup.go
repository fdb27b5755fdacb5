package schema

import "time"

// MaxMockupFileSize is the invariant cap on MockupUpload.FileSize (10 MiB).
const MaxMockupFileSize = 10 * 1024 * 1024

// MaxMockupsPerRequest is the invariant cap on mockups linked to one request.
const MaxMockupsPerRequest = 20

// DefaultMockupTTL is the window before an unprocessed upload expires.
const DefaultMockupTTL = 7 * 24 * time.Hour

// ExtendedMockupTTL is the window applied at create time.
const ExtendedMockupTTL = 30 * 24 * time.Hour

// UIElementType is the closed enum of recognized mockup UI element kinds.
type UIElementType string

const (
	UIButton         UIElementType = "button"
	UITextField      UIElementType = "textField"
	UILabel          UIElementType = "label"
	UIImage          UIElementType = "image"
	UIIcon           UIElementType = "icon"
	UINavigationBar  UIElementType = "navigationBar"
	UITabBar         UIElementType = "tabBar"
	UITableView      UIElementType = "tableView"
	UICollectionView UIElementType = "collectionView"
	UICard           UIElementType = "card"
	UIDropdown       UIElementType = "dropdown"
	UICheckbox       UIElementType = "checkbox"
	UIRadioButton    UIElementType = "radioButton"
	UISlider         UIElementType = "slider"
	UIToggle         UIElementType = "toggle"
	UISearchBar      UIElementType = "searchBar"
	UIOther          UIElementType = "other"
)

// TextCategory is the closed enum of extracted-text kinds in a mockup.
type TextCategory string

const (
	TextHeading     TextCategory = "heading"
	TextSubheading  TextCategory = "subheading"
	TextBody        TextCategory = "body"
	TextLabel       TextCategory = "label"
	TextButton      TextCategory = "button"
	TextPlaceholder TextCategory = "placeholder"
	TextError       TextCategory = "error"
	TextOther       TextCategory = "other"
)

// BoundingBox is a normalized [0,1] rectangle within the mockup image.
type BoundingBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// UIElement is one detected control on a mockup.
type UIElement struct {
	Type  UIElementType `json:"type"`
	Box   BoundingBox   `json:"box"`
	Label string        `json:"label,omitempty"`
}

// ExtractedText is one piece of recognized text on a mockup.
type ExtractedText struct {
	Category TextCategory `json:"category"`
	Text     string       `json:"text"`
}

// LayoutStructure describes the overall screen shape detected in a mockup.
type LayoutStructure struct {
	ScreenType      string   `json:"screen_type"`
	HierarchyLevels int      `json:"hierarchy_levels"`
	PrimaryLayout   string   `json:"primary_layout"`
	ComponentGroups []string `json:"component_groups,omitempty"`
}

// MockupAnalysisResult is the structured output of analyzing one mockup image.
type MockupAnalysisResult struct {
	UIElements       []UIElement       `json:"ui_elements"`
	ExtractedText    []ExtractedText   `json:"extracted_text"`
	Layout           LayoutStructure   `json:"layout"`
	ColorScheme      []string          `json:"color_scheme,omitempty"`
	UserFlows        []string          `json:"user_flows"`
	BusinessLogic    []BusinessLogicItem `json:"business_logic"`
	Confidence       float64           `json:"confidence"`
}

// BusinessLogicItem is one inferred business rule with a confidence score.
type BusinessLogicItem struct {
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

// MockupUpload binds an image binary to a request.
type MockupUpload struct {
	ID                 string                 `json:"id"`
	RequestID          string                 `json:"request_id"`
	StoragePath        string                 `json:"storage_path"`
	Bucket             string                 `json:"bucket"`
	FileName           string                 `json:"file_name"`
	FileSize           int64                  `json:"file_size"`
	MimeType           string                 `json:"mime_type"`
	UploadedAt         time.Time              `json:"uploaded_at"`
	ExpiresAt          time.Time              `json:"expires_at"`
	AnalysisResult     *MockupAnalysisResult  `json:"analysis_result,omitempty"`
	AnalysisConfidence *float64               `json:"analysis_confidence,omitempty"`
	IsProcessed        bool                   `json:"is_processed"`
}

// ConsolidatedMockupAnalysis is the per-request fan-in of all mockup analyses.
type ConsolidatedMockupAnalysis struct {
	UIElementTypes   []UIElementType `json:"ui_element_types"`
	UserFlows        []string        `json:"user_flows"`
	BusinessLogic    []BusinessLogicItem `json:"business_logic"`
	ExtractedText    []ExtractedText `json:"extracted_text"`
	MeanConfidence   float64         `json:"mean_confidence"`
}
