package rewrite

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"class-patcher/internal/classfile"
	"class-patcher/internal/testutil"
)

func bodies(t *testing.T, b []byte) (map[string][]byte, *classfile.Class) {
	t.Helper()
	c, err := classfile.Parse(b)
	require.NoError(t, err)
	out := make(map[string][]byte)
	for _, m := range c.Methods {
		name, desc := c.MemberName(m)
		i := c.FindAttribute(m.Attributes, "Code")
		if i < 0 {
			continue
		}
		code, err := classfile.ParseCode(m.Attributes[i].Data)
		require.NoError(t, err)
		out[name+desc] = code.Code
	}
	return out, c
}

func TestRewriteInsertsBeforeEveryConstructorReturn(t *testing.T) {
	in := testutil.SampleBytes("p/Q")
	out, res, err := New("").RewriteWithStats(in)
	require.NoError(t, err)
	assert.Equal(t, Result{Constructors: 3, Markers: 6}, res)

	got, c := bodies(t, out)
	idx, err := c.Pool.AddClass(DefaultMarker)
	require.NoError(t, err)
	ldc := []byte{classfile.OpLdc, byte(idx)}

	def := got[testutil.SampleDefaultInit]
	assert.Equal(t, append(ldc, classfile.OpReturn), def[4:])

	branch := got[testutil.SampleBranchInit]
	require.Len(t, branch, 14)
	assert.Equal(t, []byte{0x99, 0x00, 0x06}, branch[5:8], "jump now lands on the inserted load")
	assert.Equal(t, ldc, branch[11:13])

	assert.Len(t, got[testutil.SampleSwitchInit], 38)
	assert.Equal(t, []byte{classfile.OpReturn}, got[testutil.SampleRun], "ordinary methods are untouched")
}

func TestRewriteLeavesOtherPartsAlone(t *testing.T) {
	in := testutil.SampleBytes("p/Q")
	out, err := New("").Rewrite(in)
	require.NoError(t, err)

	before, err := classfile.Parse(in)
	require.NoError(t, err)
	after, err := classfile.Parse(out)
	require.NoError(t, err)
	assert.Equal(t, before.Name(), after.Name())
	assert.Equal(t, before.Super, after.Super)
	require.Len(t, after.Methods, len(before.Methods))
	for i := range before.Methods {
		assert.Equal(t, before.Methods[i].Name, after.Methods[i].Name)
		assert.Equal(t, before.Methods[i].Descriptor, after.Methods[i].Descriptor)
	}
	assert.Equal(t, before.Pool.Len()+2, after.Pool.Len())
}

func TestRewriteUsesWideLoadForHighPoolIndex(t *testing.T) {
	b := testutil.NewClass("p/Big").Pad(300)
	ref := b.MethodRef("java/lang/Object", "<init>", "()V")
	b.Method(testutil.Method{
		Access: 1, Name: "<init>", Desc: "()V", MaxStack: 1, MaxLocals: 1,
		Code: []byte{0x2a, 0xb7, byte(ref >> 8), byte(ref), 0xb1},
	})
	out, err := New("").Rewrite(b.Bytes())
	require.NoError(t, err)

	got, c := bodies(t, out)
	idx, err := c.Pool.AddClass(DefaultMarker)
	require.NoError(t, err)
	require.Greater(t, idx, uint16(255))
	assert.Equal(t, []byte{classfile.OpLdcW, byte(idx >> 8), byte(idx), classfile.OpReturn}, got["<init>()V"][4:])
}

func TestRewriteWithoutConstructors(t *testing.T) {
	in := testutil.NewClass("p/I").Abstract("run", "()V").Bytes()
	out, res, err := New("x/Y").RewriteWithStats(in)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	if !bytes.Equal(in, out) {
		t.Fatalf("class without constructors must round-trip unchanged")
	}
}

func TestRewriteIsNotIdempotent(t *testing.T) {
	rw := New("")
	once, err := rw.Rewrite(testutil.SampleBytes("p/Q"))
	require.NoError(t, err)
	twice, err := rw.Rewrite(once)
	require.NoError(t, err)

	got, _ := bodies(t, twice)
	assert.Len(t, got[testutil.SampleDefaultInit], 9)
}

func TestRewriteCustomMarker(t *testing.T) {
	out, err := New("com/acme/Hack").Rewrite(testutil.SampleBytes("p/Q"))
	require.NoError(t, err)
	c, err := classfile.Parse(out)
	require.NoError(t, err)
	listing, err := classfile.Disassemble(c)
	require.NoError(t, err)
	assert.Equal(t, 6, strings.Count(listing, "ldc class com/acme/Hack"))
}

func TestRewriteMalformed(t *testing.T) {
	_, err := New("").Rewrite([]byte("definitely not bytecode"))
	require.Error(t, err)
	var me *MalformedModuleError
	require.True(t, errors.As(err, &me))
	assert.ErrorIs(t, err, classfile.ErrMalformed)
	assert.True(t, IsMalformed(err))
}
