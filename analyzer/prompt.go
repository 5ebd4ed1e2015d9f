package analyzer

import (
	"fmt"

	"integrity-analyze-service/llm"
	"integrity-analyze-service/models"
)

const promptSystem = `You are an expert multimodal forensic analyst specializing in package integrity and tampering detection.

MISSION: Compare baseline vs current package photos to detect security breaches and integrity violations.

DETECTION TARGETS:
- seal_tamper: Broken, lifted, or altered seals (CRITICAL SECURITY RISK)
- repackaging: Different packaging, missing elements, or structural changes
- label_mismatch: Altered, replaced, or counterfeit labels
- digital_edit: Photo manipulation, cloning, or artificial modifications
- dent: Physical damage from impact or compression
- scratch: Surface abrasions or cuts
- stain: Discoloration or contamination
- color_shift: Significant color changes indicating tampering
- missing_item: Absent components or contents

REGION SPECIFICATION:
Be VERY specific about damage locations:
- 'left side': Left edge/panel of the package
- 'right side': Right edge/panel of the package
- 'top edge': Upper portion/seal area
- 'bottom edge': Lower portion/base
- 'front panel': Main visible surface
- 'back panel': Rear surface
- 'corner': Specific corner (top-left, top-right, etc.)
- 'center': Middle area of package

ANALYSIS RULES:
1. Return STRICT JSON: {"differences":[...]} with NO additional text
2. Focus on security-critical issues first (seal_tamper, repackaging, digital_edit)
3. Provide precise bbox coordinates [x,y,w,h] in 0..1 range
4. Use HIGH severity for security breaches, MEDIUM for damage, LOW for minor issues
5. Confidence must reflect certainty: >0.8 for clear evidence, <0.6 for uncertain
6. TIS delta: seal_tamper(-40), repackaging(-35), digital_edit(-50), labeling(-40), physical(-15)
7. ALWAYS specify exact region - never use generic terms
`

const fewShot = `Return STRICT JSON as {"differences":[...]}. Example:
{
  "differences": [
    {
      "id": "d1", "region": "top edge", "bbox": [0.12,0.03,0.76,0.08], "type": "seal_tamper",
      "description": "Seal gap visible with lifted flap indicating potential tampering.", "severity": "HIGH", "confidence": 0.84,
      "explainability": ["gap at seam", "edge discontinuity", "lifted flap"], "suggested_action": "Immediate quarantine", "tis_delta": -40
    },
    {
      "id": "d2", "region": "left side", "bbox": [0.06,0.42,0.18,0.12], "type": "dent",
      "description": "Concave deformation on left side panel suggesting impact damage.", "severity": "MEDIUM", "confidence": 0.78,
      "explainability": ["shading collapse", "curvature change", "impact pattern"], "suggested_action": "Supervisor review", "tis_delta": -15
    },
    {
      "id": "d3", "region": "right side", "bbox": [0.75,0.35,0.15,0.25], "type": "scratch",
      "description": "Linear scratch mark on right side panel.", "severity": "LOW", "confidence": 0.72,
      "explainability": ["linear mark", "surface abrasion", "edge contrast"], "suggested_action": "Proceed", "tis_delta": -8
    },
    {
      "id": "d4", "region": "front panel", "bbox": [0.2,0.1,0.6,0.2], "type": "label_mismatch",
      "description": "Label appears altered or replaced with different product information.", "severity": "HIGH", "confidence": 0.82,
      "explainability": ["text mismatch", "font difference", "color variation"], "suggested_action": "Quarantine batch", "tis_delta": -40
    },
    {
      "id": "d5", "region": "top-left corner", "bbox": [0.0,0.0,0.15,0.15], "type": "dent",
      "description": "Corner damage detected in top-left area.", "severity": "MEDIUM", "confidence": 0.75,
      "explainability": ["corner deformation", "impact damage", "structural change"], "suggested_action": "Supervisor review", "tis_delta": -15
    }
  ]
}`

// buildPrompt assembles the provider-independent part sequence: the system
// prompt with optional view context and few-shot example, then each image
// preceded by a caption that fixes its role in the comparison.
func buildPrompt(pair *models.ImagePair) []llm.Part {
	viewContext := ""
	if pair.ViewLabel != "" {
		viewContext = fmt.Sprintf("\nVIEW CONTEXT: %s\n", pair.ViewLabel)
	}
	system := promptSystem + viewContext + "\n" + fewShot

	baselineMime := pair.BaselineMime
	if baselineMime == "" {
		baselineMime = "image/jpeg"
	}
	currentMime := pair.CurrentMime
	if currentMime == "" {
		currentMime = "image/jpeg"
	}

	return []llm.Part{
		llm.TextPart(system),
		llm.TextPart(`
CRITICAL: Focus on security threats. A single seal_tamper or digital_edit should trigger immediate quarantine.
Be conservative with confidence scores.

Baseline Image (Reference):`),
		llm.ImagePart(baselineMime, pair.BaselineBytes),
		llm.TextPart("\nCurrent Image (Under Analysis):"),
		llm.ImagePart(currentMime, pair.CurrentBytes),
	}
}
