package schema

import (
	"strings"

	"github.com/samber/lo"
	runtimeschema "k8s.io/apimachinery/pkg/runtime/schema"
)

const (
	GroupVersionKindExtension      = "x-kubernetes-group-version-kind"
	PreserveUnknownFieldsExtension = "x-kubernetes-preserve-unknown-fields"

	ComponentsRefPrefix  = "#/components/schemas/"
	DefinitionsRefPrefix = "#/definitions/"
)

// Normalize rewrites a fetched definition in place: kind and apiVersion enums
// are derived from the group-version-kind extension, the definition is closed
// unless it preserves unknown fields, and the whole tree is cleaned up.
// Values that are not objects are left alone.
func Normalize(v *Value) {
	obj, ok := v.AsObject()
	if !ok {
		return
	}

	fixKind(obj)
	if !obj.Has(PreserveUnknownFieldsExtension) {
		obj.Set("additionalProperties", Bool(false))
	}
	cleanupSchema(obj)
}

func fixKind(obj *Object) {
	gvks := groupVersionKinds(obj)
	if len(gvks) == 0 {
		return
	}

	props, ok := obj.GetObject("properties")
	if !ok {
		return
	}

	if kind, ok := props.GetObject("kind"); ok {
		kinds := lo.Uniq(lo.Map(gvks, func(gvk runtimeschema.GroupVersionKind, _ int) string {
			return gvk.Kind
		}))
		kind.Set("enum", Strings(kinds...))
	}

	if apiVersion, ok := props.GetObject("apiVersion"); ok {
		versions := lo.Uniq(lo.Map(gvks, func(gvk runtimeschema.GroupVersionKind, _ int) string {
			return gvk.GroupVersion().String()
		}))
		apiVersion.Set("enum", Strings(versions...))
	}
}

// groupVersionKinds reads the well-formed entries of the group-version-kind
// extension. Entries without a kind or a version are skipped.
func groupVersionKinds(obj *Object) []runtimeschema.GroupVersionKind {
	ext, ok := obj.Get(GroupVersionKindExtension)
	if !ok {
		return nil
	}
	items, ok := ext.AsArray()
	if !ok {
		return nil
	}

	gvks := make([]runtimeschema.GroupVersionKind, 0, len(items))
	for _, item := range items {
		entry, ok := item.AsObject()
		if !ok {
			continue
		}
		group, _ := entry.GetString("group")
		version, _ := entry.GetString("version")
		kind, _ := entry.GetString("kind")
		if version == "" || kind == "" {
			continue
		}
		gvks = append(gvks, runtimeschema.GroupVersionKind{Group: group, Version: version, Kind: kind})
	}
	return gvks
}

func cleanupSchema(obj *Object) {
	obj.Delete("default")

	if ref, ok := singleAllOfRef(obj); ok {
		obj.Delete("allOf")
		obj.Set("$ref", ref)
	}

	if ref, ok := obj.GetString("$ref"); ok {
		obj.Set("$ref", String(strings.ReplaceAll(ref, ComponentsRefPrefix, DefinitionsRefPrefix)))
	}

	if enum, ok := obj.Get("enum"); ok {
		if items, ok := enum.AsArray(); ok {
			obj.Set("enum", Array(uniqueValues(items)...))
		}
	}

	obj.Range(func(_ string, child *Value) bool {
		switch child.Kind() {
		case ObjectKind:
			cleanupSchema(child.obj)
		case ArrayKind:
			for _, item := range child.arr {
				if nested, ok := item.AsObject(); ok {
					cleanupSchema(nested)
				}
			}
		case NullKind, BoolKind, NumberKind, StringKind:
		}
		return true
	})
}

// singleAllOfRef matches {"allOf": [{"$ref": ...}]} and returns the inner $ref.
func singleAllOfRef(obj *Object) (*Value, bool) {
	allOf, ok := obj.Get("allOf")
	if !ok {
		return nil, false
	}
	items, ok := allOf.AsArray()
	if !ok || len(items) != 1 {
		return nil, false
	}
	only, ok := items[0].AsObject()
	if !ok || only.Len() != 1 {
		return nil, false
	}
	return only.Get("$ref")
}

// uniqueValues drops repeated values, keeping the first occurrence of each.
func uniqueValues(items []*Value) []*Value {
	return lo.UniqBy(items, func(item *Value) string {
		return item.canonical()
	})
}
