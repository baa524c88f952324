package utils

import "strings"

func StringIsEmptyOrWhitespace(s string) bool {
	return len(strings.TrimSpace(s)) == 0
}

// SafeFileName reemplaza los separadores de ruta para usar un nombre de topic como archivo.
func SafeFileName(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ':' {
			return '_'
		}
		return r
	}, name)
}
