package typecache

import (
	"iter"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pair[K comparable, V any] struct {
	Key   K
	Value V
}

type box[T any] struct{ v T }

type plain struct{}

func TestTableMemoizes(t *testing.T) {
	var calls atomic.Int32
	table := NewTable(func(e reflect.Type) reflect.Type {
		calls.Add(1)
		return reflect.SliceOf(e)
	})

	elem := reflect.TypeFor[plain]()
	first := table.Of(elem)
	second := table.Of(elem)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTableConcurrentMissesConverge(t *testing.T) {
	table := NewTable(func(k int) *int {
		v := k
		return &v
	})

	var wg sync.WaitGroup
	results := make([]*int, 64)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = table.Of(7)
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestArrayTypeOf(t *testing.T) {
	elem := reflect.TypeFor[plain]()
	assert.Equal(t, reflect.TypeFor[[]plain](), ArrayTypeOf(elem))
	assert.Equal(t, ArrayTypeOf(elem), ArrayTypeOf(elem))
}

func TestSequenceTypes(t *testing.T) {
	elem := reflect.TypeFor[string]()

	seq := SequenceTypeOf(elem)
	require.Equal(t, reflect.Func, seq.Kind())
	assert.True(t, seq.AssignableTo(reflect.TypeFor[iter.Seq[string]]()))

	ro := ReadOnlySequenceTypeOf(elem)
	assert.True(t, ro.AssignableTo(reflect.TypeFor[iter.Seq2[int, string]]()))
}

func TestOpenGenericOf(t *testing.T) {
	def := OpenGenericOf(reflect.TypeFor[box[int]]())
	assert.Equal(t, "box", def.Name)
	assert.Equal(t, reflect.TypeFor[plain]().PkgPath(), def.PkgPath)
	assert.Equal(t, def, OpenGenericOf(reflect.TypeFor[box[string]]()))

	assert.True(t, OpenGenericOf(reflect.TypeFor[plain]()).IsZero())
}

func TestGenericArgumentsOf(t *testing.T) {
	args := GenericArgumentsOf(reflect.TypeFor[pair[string, map[string]int]]())
	require.Len(t, args, 2)
	assert.Equal(t, "string", args[0])
	assert.Equal(t, "map[string]int", args[1])

	nested := GenericArgumentsOf(reflect.TypeFor[box[pair[int, bool]]]())
	require.Len(t, nested, 1)
	assert.Contains(t, nested[0], "pair[int,bool]")

	assert.Nil(t, GenericArgumentsOf(reflect.TypeFor[plain]()))
}

func TestGenericArgumentsOfReturnsCopy(t *testing.T) {
	typ := reflect.TypeFor[pair[int, string]]()
	args := GenericArgumentsOf(typ)
	require.Len(t, args, 2)

	args[0] = "mutated"
	args = append(args[:1], "appended")

	assert.Equal(t, []string{"int", "string"}, GenericArgumentsOf(typ))
}
