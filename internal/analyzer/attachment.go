package analyzer

import (
	"strings"

	"github.com/calloway/mailscan/internal/core"
)

// dangerousExtensions can execute code on the victim's machine.
var dangerousExtensions = map[string]struct{}{
	"exe": {}, "bat": {}, "cmd": {}, "scr": {}, "vbs": {}, "js": {},
	"jar": {}, "msi": {}, "ps1": {}, "psm1": {}, "com": {}, "cpl": {},
	"reg": {}, "hta": {}, "lnk": {}, "pif": {}, "msc": {}, "apk": {},
	"sh": {},
}

// suspiciousExtensions are common but abusable formats: archives and
// office/PDF documents.
var suspiciousExtensions = map[string]struct{}{
	"zip": {}, "rar": {}, "7z": {}, "tar": {}, "gz": {}, "iso": {},
	"doc": {}, "docx": {}, "xls": {}, "xlsx": {}, "ppt": {}, "pptx": {},
	"pdf": {}, "rtf": {},
}

// macroExtensions are macro-enabled Office formats; always dangerous.
var macroExtensions = map[string]struct{}{
	"docm": {}, "xlsm": {}, "pptm": {},
}

// Attachments classifies attachments from filename and extension only.
// Content is never inspected.
type Attachments struct{}

// NewAttachments creates the attachment classifier.
func NewAttachments() *Attachments {
	return &Attachments{}
}

// ClassifyAttachments scores every attachment and counts the dangerous
// ones.
func (a *Attachments) ClassifyAttachments(attachments []core.AttachmentFacts) core.AttachmentAnalysis {
	analysis := core.AttachmentAnalysis{Results: []core.AttachmentResult{}}

	for _, attachment := range attachments {
		result := a.classify(attachment)
		if result.Dangerous {
			analysis.DangerousCount++
		}
		analysis.Results = append(analysis.Results, result)
	}
	return analysis
}

func (a *Attachments) classify(attachment core.AttachmentFacts) core.AttachmentResult {
	ext := strings.ToLower(strings.TrimPrefix(attachment.Extension, "."))
	if ext == "" {
		ext = extensionOf(attachment.Filename)
	}

	result := core.AttachmentResult{
		Filename:  attachment.Filename,
		Extension: ext,
		Flags:     []string{},
	}

	if _, ok := dangerousExtensions[ext]; ok {
		result.Dangerous = true
		result.RiskScore = 90
		result.Flags = append(result.Flags, "Dangerous file type: ."+ext)
	} else if _, ok := suspiciousExtensions[ext]; ok {
		result.RiskScore = 30
		result.Flags = append(result.Flags, "File type ."+ext+" requires caution")
	}

	if _, ok := macroExtensions[ext]; ok {
		result.Dangerous = true
		if result.RiskScore < 80 {
			result.RiskScore = 80
		}
		result.Flags = append(result.Flags, "Macro-enabled Office document")
	}

	// invoice.pdf.exe and friends. The stacked score may exceed 100; the
	// email-level clamp happens in aggregation, not here.
	if hasDoubleExtension(attachment.Filename) {
		result.Dangerous = true
		result.RiskScore += 40
		result.Flags = append(result.Flags, "Double file extension: "+attachment.Filename)
	}

	return result
}

func extensionOf(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 || i == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[i+1:])
}

// hasDoubleExtension reports whether the filename carries more than one
// extension segment.
func hasDoubleExtension(filename string) bool {
	parts := strings.Split(strings.ToLower(filename), ".")
	return len(parts) > 2
}
