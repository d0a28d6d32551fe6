package mock

import (
	"fmt"
	"reflect"
	"testing"
)

// CheckActorExports checks that every exported method of an actor has the signature expected by a VM
// and that its parameters expose no unexported fields.
func CheckActorExports(t *testing.T, act interface{ Exports() []interface{} }) {
	for i, m := range act.Exports() {
		if i == 0 || m == nil { // Send is implicit
			continue
		}
		meth := reflect.ValueOf(m)
		t.Run(fmt.Sprintf("method%d-type", i), func(t *testing.T) {
			mrt := &Runtime{t: t}
			mrt.verifyExportedMethodType(meth)
		})
		t.Run(fmt.Sprintf("method%d-unsafe-input", i), func(t *testing.T) {
			checkTypeExports(t, meth.Type().In(1).Elem())
		})
	}
}

// Fails if a struct type has any unexported field, which would be silently dropped on decode.
func checkTypeExports(t *testing.T, typ reflect.Type) {
	if typ.Kind() != reflect.Struct {
		return
	}
	if typ.PkgPath() == "math/big" || typ.Name() == "Address" {
		// Library types with their own encoding.
		return
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if f.PkgPath != "" && !f.Anonymous {
			t.Errorf("%v has unexported field %s", typ, f.Name)
		}
	}
}
