package txncache

import "reflect"

// DeepMerge is the default EntityMergeFunc. It recursively walks object-
// shaped values (structs and maps) field-by-field: where a field/key is
// present on both source and target and the values differ, it recurses;
// fields unique to the source are copied in; non-object values (primitives,
// slices, arrays) replace the target wholesale. Slices are never merged
// element-wise. A struct field that holds its type's zero value on the
// source side counts as absent and leaves the target's field unchanged.
func DeepMerge[K comparable, V any](_ K, incoming EntityRevision[V], current V, _ *LiveTransaction[K, V]) (V, bool) {
	merged := deepMergeValue(reflect.ValueOf(current), reflect.ValueOf(incoming.Entity))
	out, ok := merged.Interface().(V)
	return out, ok
}

func deepMergeValue(target, source reflect.Value) reflect.Value {
	if !source.IsValid() {
		return target
	}
	if !target.IsValid() {
		return source
	}

	switch source.Kind() {
	case reflect.Struct:
		if target.Kind() != reflect.Struct || target.Type() != source.Type() {
			return source
		}
		out := reflect.New(target.Type()).Elem()
		out.Set(target)
		for i := 0; i < source.NumField(); i++ {
			field := source.Type().Field(i)
			if !field.IsExported() {
				continue
			}
			sv := source.Field(i)
			if sv.IsZero() {
				// zero value on the incoming side means the field is absent
				// from the incoming object: leave target's value untouched.
				continue
			}
			tv := target.Field(i)
			if !valuesEqual(tv, sv) {
				out.Field(i).Set(deepMergeValue(tv, sv))
			}
		}
		return out

	case reflect.Map:
		if target.Kind() != reflect.Map || target.Type() != source.Type() || target.IsNil() {
			return source
		}
		out := reflect.MakeMap(target.Type())
		for _, k := range target.MapKeys() {
			out.SetMapIndex(k, target.MapIndex(k))
		}
		for _, k := range source.MapKeys() {
			sv := source.MapIndex(k)
			if tv := target.MapIndex(k); tv.IsValid() {
				if !valuesEqual(tv, sv) {
					out.SetMapIndex(k, deepMergeValue(tv, sv))
				}
			} else {
				out.SetMapIndex(k, sv)
			}
		}
		return out

	case reflect.Ptr:
		if source.IsNil() {
			return target
		}
		if target.Kind() != reflect.Ptr || target.IsNil() {
			return source
		}
		merged := deepMergeValue(target.Elem(), source.Elem())
		out := reflect.New(merged.Type())
		out.Elem().Set(merged)
		return out

	default:
		// primitives, slices, arrays, interfaces, chans, funcs: replace wholesale.
		return source
	}
}

func valuesEqual(a, b reflect.Value) (equal bool) {
	if !a.IsValid() || !b.IsValid() {
		return a.IsValid() == b.IsValid()
	}
	if !a.Type().Comparable() {
		return false
	}
	// interface-typed fields report Comparable()==true even when their
	// dynamic value (a slice, say) isn't; == panics at runtime in that case.
	defer func() {
		if recover() != nil {
			equal = false
		}
	}()
	return a.Interface() == b.Interface()
}

// RetainAll is the default RevisionMergeFunc. It appends every local
// revision of key into the committing transaction's merged-revisions.
func RetainAll[K comparable, V any](key K, committing *CommittingTransaction[K, V], txn *LiveTransaction[K, V]) {
	committing.AppendRevisions(key, txn.LocalRevisions(key))
}
