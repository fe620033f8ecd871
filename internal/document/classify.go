package document

import (
	"path/filepath"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
)

// Classify decides which capture prompt fits a document, based only on its extension.
// Photographed or scanned images are treated as handwritten; everything else is digital.
func Classify(path string) constants.DocumentClass {
	if _, ok := constants.ImageExtensions[constants.NormalizeExt(filepath.Ext(path))]; ok {
		return constants.Handwritten
	}
	return constants.Digital
}
