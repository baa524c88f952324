package strategy

import (
	"sort"
	"strings"
)

// quote escapa un label, tipo o nombre de propiedad para usarlo en el texto de la query.
func quote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// labelList devuelve ":`A`:`B`" o "" si no hay labels.
func labelList(labels []string) string {
	var sb strings.Builder
	for _, l := range labels {
		sb.WriteString(":")
		sb.WriteString(quote(l))
	}
	return sb.String()
}

// propertyMatch arma "{`a`: <source>.`a`, `b`: <source>.`b`}" para MERGE/MATCH.
func propertyMatch(names []string, source string) string {
	if len(names) == 0 {
		return ""
	}

	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = quote(n) + ": " + source + "." + quote(n)
	}
	return " {" + strings.Join(parts, ", ") + "}"
}

func sortedKeys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// setProperties arma el SET de propiedades: aditivo con += o reemplazo con =, en cuyo caso
// las identidades se vuelven a escribir para no perderlas.
func setProperties(variable, properties, keys string, merge bool) string {
	if merge {
		return "SET " + variable + " += " + properties
	}
	if keys == "" {
		return "SET " + variable + " = " + properties
	}
	return "SET " + variable + " = " + properties + " SET " + variable + " += " + keys
}
