package ws

import (
	"testing"

	"github.com/stretchr/testify/require"

	"chat-relay/errors"
)

func TestConnection_Admit_Maps_Rejections_To_Sentinels(t *testing.T) {
	req := require.New(t)

	// Given a connection allowed to post bodies of up to 5 bytes
	connection := &Connection{maxLength: 5, canPost: true}

	// Then each rejection reason surfaces as its sentinel
	req.ErrorIs(connection.admit("   "), errors.ErrEmptyBody)
	req.ErrorIs(connection.admit("much too long"), errors.ErrBodyTooLong)
	req.NoError(connection.admit("hello"))

	// And a read-only member is denied regardless of the body
	connection.canPost = false
	req.ErrorIs(connection.admit("hello"), errors.ErrForbidden)
}
