package strategy

import (
	"fmt"
	"strings"

	"github.com/SOLUCIONESSYCOM/go_neo4j_connector/src/pattern"
)

// lookup recorre mapas anidados siguiendo una ruta con puntos.
func lookup(root any, path string) (any, bool) {
	current := root
	for _, segment := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// flatten aplana mapas anidados a nombres con puntos ("address.city").
func flatten(prefix string, in map[string]any, out map[string]any) {
	for k, v := range in {
		name := k
		if prefix != "" {
			name = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok && len(nested) > 0 {
			flatten(name, nested, out)
			continue
		}
		out[name] = v
	}
}

// keyField lee del key del mensaje. Un key escalar solo sirve cuando hay una unica identidad.
func keyField(key any, path string, scalarAllowed bool) (any, bool) {
	if _, isMap := key.(map[string]any); isMap {
		return lookup(key, path)
	}
	if scalarAllowed && key != nil {
		return key, true
	}
	return nil, false
}

func resolveField(p pattern.Property, key, value any, keyFallback, scalarKey bool) (any, bool) {
	source, path := p.Source()

	switch source {
	case "key":
		return keyField(key, path, scalarKey)
	case "value":
		return lookup(value, path)
	}

	if v, ok := lookup(value, path); ok {
		return v, true
	}
	if keyFallback {
		return keyField(key, path, scalarKey)
	}
	return nil, false
}

// resolveKeys extrae las identidades; una identidad ausente o nula rechaza el mensaje.
func resolveKeys(side string, props []pattern.Property, key, value any) (map[string]any, error) {
	out := make(map[string]any, len(props))
	scalarKey := len(props) == 1

	for _, p := range props {
		v, ok := resolveField(p, key, value, true, scalarKey)
		if !ok || v == nil {
			return nil, fmt.Errorf("%w: %s property %q (path %q)", ErrMissingIdentity, side, p.Name, p.Path)
		}
		out[p.Name] = v
	}
	return out, nil
}

// usedFields son los nombres y rutas que ya consume una entidad; se excluyen del include-all.
func usedFields(e *pattern.Entity) map[string]struct{} {
	out := map[string]struct{}{}
	for _, group := range [][]pattern.Property{e.Keys, e.Properties} {
		for _, p := range group {
			_, path := p.Source()
			out[p.Name] = struct{}{}
			out[path] = struct{}{}
		}
	}
	return out
}

func excluded(e *pattern.Entity, name string) bool {
	for _, x := range e.Excluded {
		if name == x || strings.HasPrefix(name, x+".") {
			return true
		}
	}
	return false
}

func resolveProperties(e *pattern.Entity, includeAllDefault bool, key, value any, skip map[string]struct{}) map[string]any {
	out := map[string]any{}

	if e.IncludesAll(includeAllDefault) {
		m, ok := value.(map[string]any)
		if !ok {
			return out
		}

		flat := map[string]any{}
		flatten("", m, flat)

		for name, v := range flat {
			if _, used := skip[name]; used || excluded(e, name) {
				continue
			}
			out[name] = v
		}
		return out
	}

	for _, p := range e.Properties {
		if v, ok := resolveField(p, key, value, false, false); ok {
			out[p.Name] = v
		}
	}
	return out
}
