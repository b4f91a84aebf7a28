package filters

import (
	"testing"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/require"
)

func TestCheckAccess(t *testing.T) {
	f := NewChatFilter(-100)
	from := &telego.User{ID: 7}

	require.True(t, f.CheckAccess(&telego.Message{Chat: telego.Chat{ID: -100, Type: telego.ChatTypeSupergroup}, From: from}))
	require.True(t, f.CheckAccess(&telego.Message{Chat: telego.Chat{ID: 7, Type: telego.ChatTypePrivate}, From: from}))
	require.False(t, f.CheckAccess(&telego.Message{Chat: telego.Chat{ID: -200, Type: telego.ChatTypeGroup}, From: from}))
	require.False(t, f.CheckAccess(&telego.Message{Chat: telego.Chat{ID: -100}}))
	require.False(t, f.CheckAccess(nil))
	require.False(t, NewChatFilter(0).CheckAccess(&telego.Message{Chat: telego.Chat{ID: -100}, From: from}))
}
