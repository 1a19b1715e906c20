package field_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata/schema/field"
)

func TestType(t *testing.T) {
	t.Parallel()
	tests := []struct {
		typ        field.Type
		name       string
		numeric    bool
		comparable bool
	}{
		{field.TypeBool, "bool", false, false},
		{field.TypeTime, "time.Time", false, true},
		{field.TypeBytes, "[]byte", false, false},
		{field.TypeUUID, "uuid.UUID", false, false},
		{field.TypeInt, "int", true, true},
		{field.TypeInt64, "int64", true, true},
		{field.TypeFloat64, "float64", true, true},
		{field.TypeString, "string", false, true},
		{field.TypeEnum, "enum", false, true},
		{field.TypeJSON, "json", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.typ.String())
			assert.True(t, tt.typ.Valid())
			assert.Equal(t, tt.numeric, tt.typ.Numeric())
			assert.Equal(t, tt.comparable, tt.typ.Comparable())
		})
	}
	assert.False(t, field.TypeInvalid.Valid())
	assert.Equal(t, "invalid", field.TypeInvalid.String())
	assert.Equal(t, "invalid", field.Type(100).String())
}

func TestTypeCompatible(t *testing.T) {
	t.Parallel()
	assert.True(t, field.TypeInt.Compatible(field.TypeInt64))
	assert.True(t, field.TypeInt64.Compatible(field.TypeInt))
	assert.True(t, field.TypeString.Compatible(field.TypeString))
	assert.False(t, field.TypeString.Compatible(field.TypeInt))
	assert.False(t, field.TypeFloat64.Compatible(field.TypeInt))
	assert.False(t, field.TypeUUID.Compatible(field.TypeString))
}

func TestBuilders(t *testing.T) {
	t.Parallel()
	fd := field.String("email").
		Unique().
		Comment("login address").
		Descriptor()
	assert.Equal(t, "email", fd.Name)
	assert.Equal(t, field.TypeString, fd.Type)
	assert.True(t, fd.Unique)
	assert.Equal(t, "login address", fd.Comment)

	fd = field.Int64("id").Key().ServerDefault().Descriptor()
	assert.Equal(t, field.TypeInt64, fd.Type)
	assert.True(t, fd.Key)
	assert.Equal(t, field.DefaultServer, fd.DefaultKind)

	fd = field.Time("deleted_at").Nillable().Descriptor()
	assert.Equal(t, field.TypeTime, fd.Type)
	assert.True(t, fd.Nillable)

	fd = field.Enum("status").Values("pending", "shipped").Descriptor()
	assert.Equal(t, field.TypeEnum, fd.Type)
	assert.Equal(t, []string{"pending", "shipped"}, fd.Values)

	fd = field.Float64("price").Immutable().Descriptor()
	assert.Equal(t, field.TypeFloat64, fd.Type)
	assert.True(t, fd.Immutable)

	for _, tt := range []struct {
		desc *field.Descriptor
		typ  field.Type
	}{
		{field.Bool("active").Descriptor(), field.TypeBool},
		{field.Bytes("blob").Descriptor(), field.TypeBytes},
		{field.UUID("token").Descriptor(), field.TypeUUID},
		{field.Int("age").Descriptor(), field.TypeInt},
		{field.JSON("meta").Descriptor(), field.TypeJSON},
	} {
		assert.Equal(t, tt.typ, tt.desc.Type)
	}
}

func TestDefaultValue(t *testing.T) {
	t.Parallel()
	t.Run("None", func(t *testing.T) {
		fd := field.String("name").Descriptor()
		v, ok := fd.DefaultValue()
		assert.False(t, ok)
		assert.Nil(t, v)
	})

	t.Run("Constant", func(t *testing.T) {
		fd := field.String("status").Default("pending").Descriptor()
		v, ok := fd.DefaultValue()
		require.True(t, ok)
		assert.Equal(t, "pending", v)
	})

	t.Run("Generator", func(t *testing.T) {
		fd := field.Time("created_at").Default(time.Now).Descriptor()
		v, ok := fd.DefaultValue()
		require.True(t, ok)
		ts, ok := v.(time.Time)
		require.True(t, ok)
		assert.WithinDuration(t, time.Now(), ts, time.Minute)

		fd = field.UUID("token").Default(uuid.New).Descriptor()
		v, ok = fd.DefaultValue()
		require.True(t, ok)
		id, ok := v.(uuid.UUID)
		require.True(t, ok)
		assert.NotEqual(t, uuid.Nil, id)
	})

	t.Run("Server", func(t *testing.T) {
		fd := field.Int64("id").Key().ServerDefault().Descriptor()
		v, ok := fd.DefaultValue()
		assert.False(t, ok)
		assert.Nil(t, v)
	})
}
