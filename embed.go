package impostor

import (
	_ "embed"
)

// Word categories shipped with the server
//
//go:embed static/categories.yaml
var CategoriesYAML []byte
