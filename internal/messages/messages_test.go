package messages

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeLeft(t *testing.T) {
	assert.Equal(t, "осталось 5 дней", TimeLeft(5*24*time.Hour))
	assert.Equal(t, "осталось 2 дня", TimeLeft(2*24*time.Hour+time.Hour))
	assert.Equal(t, "осталось 1 день", TimeLeft(24*time.Hour+time.Minute))
	assert.Equal(t, "осталось 21 день", TimeLeft(21*24*time.Hour+time.Minute))
	assert.Equal(t, "осталось 3 часа", TimeLeft(3*time.Hour+time.Minute))
	assert.Equal(t, "осталось 1 минута", TimeLeft(30*time.Second))
}

func TestEscape(t *testing.T) {
	assert.Equal(t, "a &amp; b &lt;c&gt;", Escape(" a & b <c> "))
}
