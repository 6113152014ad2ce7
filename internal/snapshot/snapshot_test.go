package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netbloom/internal/domain"
)

func conn(src, dst string, port int) domain.Connection {
	return domain.Connection{Source: src, Target: dst, Port: port}
}

func TestNormalize(t *testing.T) {
	t.Run("drops loopback tuples", func(t *testing.T) {
		res := Normalize([]domain.Connection{
			conn("127.0.0.1", "8.8.8.8", 443),
			conn("10.0.0.2", "127.0.0.1", 80),
			conn("::1", "10.0.0.3", 22),
			conn("10.0.0.2", "8.8.8.8", 443),
		})

		require.Len(t, res.Accepted, 1)
		assert.Equal(t, conn("10.0.0.2", "8.8.8.8", 443), res.Accepted[0])
		assert.Equal(t, 3, res.Loopback)
		assert.Zero(t, res.Rejected)
	})

	t.Run("rejects malformed tuples", func(t *testing.T) {
		res := Normalize([]domain.Connection{
			conn("", "8.8.8.8", 443),
			conn("10.0.0.2", "not-an-ip", 443),
			conn("10.0.0.2", "8.8.8.8", -1),
			conn("10.0.0.2", "8.8.8.8", 70000),
		})

		assert.Empty(t, res.Accepted)
		assert.Equal(t, 4, res.Rejected)
	})

	t.Run("keeps order", func(t *testing.T) {
		res := Normalize([]domain.Connection{
			conn("10.0.0.3", "1.1.1.1", 53),
			conn("10.0.0.2", "8.8.8.8", 443),
		})
		require.Len(t, res.Accepted, 2)
		assert.Equal(t, 53, res.Accepted[0].Port)
	})
}

func TestIsLoopback(t *testing.T) {
	assert.True(t, IsLoopback("127.0.0.1"))
	assert.True(t, IsLoopback("127.1.2.3"))
	assert.False(t, IsLoopback("10.0.0.1"))
	assert.False(t, IsLoopback("garbage"))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "10.0.0.2_8.8.8.8_443", Key(conn("10.0.0.2", "8.8.8.8", 443)))
}

func TestDifferNext(t *testing.T) {
	a := conn("10.0.0.2", "8.8.8.8", 443)
	b := conn("10.0.0.3", "1.1.1.1", 53)
	c := conn("10.0.0.2", "8.8.4.4", 443)

	t.Run("first snapshot is all added", func(t *testing.T) {
		d := NewDiffer()
		diff := d.Next([]domain.Connection{a, b})
		assert.ElementsMatch(t, []domain.Connection{a, b}, diff.Added)
		assert.Empty(t, diff.Removed)
	})

	t.Run("same snapshot twice is empty", func(t *testing.T) {
		d := NewDiffer()
		d.Next([]domain.Connection{a, b})
		diff := d.Next([]domain.Connection{a, b})
		assert.True(t, diff.Empty())
	})

	t.Run("order is irrelevant", func(t *testing.T) {
		d := NewDiffer()
		d.Next([]domain.Connection{a, b})
		diff := d.Next([]domain.Connection{b, a})
		assert.True(t, diff.Empty())
	})

	t.Run("added and removed", func(t *testing.T) {
		d := NewDiffer()
		d.Next([]domain.Connection{a, b})
		diff := d.Next([]domain.Connection{b, c})
		assert.Equal(t, []domain.Connection{c}, diff.Added)
		assert.Equal(t, []domain.Connection{a}, diff.Removed)
		assert.ElementsMatch(t, []domain.Connection{b, c}, d.Previous())
	})

	t.Run("duplicates count once", func(t *testing.T) {
		d := NewDiffer()
		diff := d.Next([]domain.Connection{a, a})
		assert.Len(t, diff.Added, 1)
		diff = d.Next(nil)
		assert.Len(t, diff.Removed, 1)
	})

	t.Run("reset forgets previous", func(t *testing.T) {
		d := NewDiffer()
		d.Next([]domain.Connection{a})
		d.Reset()
		diff := d.Next([]domain.Connection{a})
		assert.Len(t, diff.Added, 1)
	})
}
