package edit

import (
	"fmt"
	"strings"
)

const (
	skinTonePolicy = `Safety & Ethics Policy:
- You MUST fulfill requests to adjust skin tone, such as 'give me a tan', 'make my skin darker', or 'make my skin lighter'. These are considered standard photo enhancements.
- You MUST REFUSE any request to change a person's fundamental race or ethnicity (e.g., 'make me look Asian', 'change this person to be Black'). Do not perform these edits. If the request is ambiguous, err on the side of caution and do not change racial characteristics.`

	regionPolicy = `Safety & Ethics Policy:
- You MUST fulfill requests to adjust skin tone.
- You MUST REFUSE any request to change a person's fundamental race or ethnicity.`

	filterPolicy = `Safety & Ethics Policy:
- Filters may subtly shift colors, but you MUST ensure they do not alter a person's fundamental race or ethnicity.
- You MUST REFUSE any request that explicitly asks to change a person's race (e.g., 'apply a filter to make me look Chinese').`

	detectPrompt = `Analyze this image and identify the main, distinct objects. For each object, provide its common name and a precise bounding box.
The bounding box coordinates must be normalized, where the top-left corner of the image is (0, 0) and the bottom-right is (1, 1).
For example, a bounding box for an object in the top-left quadrant might be { "x1": 0.05, "y1": 0.1, "x2": 0.4, "y2": 0.5 }.
Return a JSON array of objects, with each object having a 'name' and 'boundingBox' property. Only include objects that are clearly visible and identifiable.`

	editorRole = "You are an expert photo editor AI."
)

func outputOnly(what string) string {
	return fmt.Sprintf("Output: Return ONLY the final %s image. Do not return text.", what)
}

func BuildPointPrompt(instruction string, spot Hotspot) string {
	lines := []string{
		editorRole + " Your task is to perform a natural, localized edit on the provided image based on the user's request.",
		fmt.Sprintf("User Request: %q", strings.TrimSpace(instruction)),
		fmt.Sprintf("Edit Location: Focus on the area around pixel coordinates (x: %d, y: %d).", spot.X, spot.Y),
		"",
		"Editing Guidelines:",
		"- The edit must be realistic and blend seamlessly with the surrounding area.",
		"- The rest of the image (outside the immediate edit area) must remain identical to the original.",
		"",
		skinTonePolicy,
		"",
		outputOnly("edited"),
	}
	return strings.Join(lines, "\n")
}

func BuildRegionPrompt(instruction string, box BoundingBox) string {
	lines := []string{
		editorRole + " Your task is to perform an edit on a specific object within the provided image based on the user's request.",
		fmt.Sprintf("User Request: %q", strings.TrimSpace(instruction)),
		fmt.Sprintf("Object Location: The object is located within the bounding box with pixel coordinates from top-left (x1: %g, y1: %g) to bottom-right (x2: %g, y2: %g).",
			box.X1, box.Y1, box.X2, box.Y2),
		"",
		"Editing Guidelines:",
		"- The edit must be realistic and primarily contained within the specified bounding box.",
		"- Blend the edit seamlessly with the surrounding area.",
		"- The rest of the image (outside the bounding box) must remain identical to the original.",
		"",
		regionPolicy,
		"",
		outputOnly("edited"),
	}
	return strings.Join(lines, "\n")
}

func BuildFilterPrompt(filter string) string {
	lines := []string{
		editorRole + " Your task is to apply a stylistic filter to the entire image based on the user's request. Do not change the composition or content, only apply the style.",
		fmt.Sprintf("Filter Request: %q", strings.TrimSpace(filter)),
		"",
		filterPolicy,
		"",
		outputOnly("filtered"),
	}
	return strings.Join(lines, "\n")
}

func BuildAdjustmentPrompt(adjustment string) string {
	lines := []string{
		editorRole + " Your task is to perform a natural, global adjustment to the entire image based on the user's request.",
		fmt.Sprintf("User Request: %q", strings.TrimSpace(adjustment)),
		"",
		"Editing Guidelines:",
		"- The adjustment must be applied across the entire image.",
		"- The result must be photorealistic.",
		"",
		skinTonePolicy,
		"",
		outputOnly("adjusted"),
	}
	return strings.Join(lines, "\n")
}

func BuildDetectPrompt() string { return detectPrompt }

// DetectionSchema: массив {name, boundingBox{x1,y1,x2,y2}}, все поля обязательны.
func DetectionSchema() *SchemaNode {
	coord := func(desc string) *SchemaNode {
		return &SchemaNode{Type: SchemaNumber, Description: desc}
	}
	return &SchemaNode{
		Type: SchemaArray,
		Items: &SchemaNode{
			Type: SchemaObject,
			Properties: map[string]*SchemaNode{
				"name": {
					Type:        SchemaString,
					Description: `The common name of the detected object (e.g., "car", "person", "tree").`,
				},
				"boundingBox": {
					Type: SchemaObject,
					Properties: map[string]*SchemaNode{
						"x1": coord("Normalized x-coordinate of the top-left corner."),
						"y1": coord("Normalized y-coordinate of the top-left corner."),
						"x2": coord("Normalized x-coordinate of the bottom-right corner."),
						"y2": coord("Normalized y-coordinate of the bottom-right corner."),
					},
					Required: []string{"x1", "y1", "x2", "y2"},
				},
			},
			Required: []string{"name", "boundingBox"},
		},
	}
}
