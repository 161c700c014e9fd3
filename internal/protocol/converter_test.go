package protocol

import (
	"testing"
	"time"

	"github.com/jacl-coder/ElementalCard-Server/internal/models"
	"github.com/jacl-coder/ElementalCard-Server/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertEventToProto(t *testing.T) {
	owner := models.Address{0xa1}
	e := registry.Event{
		Type:    registry.EventCardMinted,
		Version: 3,
		TokenID: 7,
		Owner:   owner,
		At:      time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	msg, err := ConvertEventToProto(e)
	require.NoError(t, err)
	fields := msg.GetFields()
	assert.Equal(t, "CardMinted", fields["type"].GetStringValue())
	assert.Equal(t, float64(7), fields["token_id"].GetNumberValue())
	assert.Equal(t, owner.Hex(), fields["owner"].GetStringValue())
	assert.Equal(t, "2024-01-02T03:04:05Z", fields["at"].GetStringValue())
}

func TestConvertStarterPackEvent(t *testing.T) {
	msg, err := ConvertEventToProto(registry.Event{
		Type:     registry.EventStarterPackClaimed,
		TokenIDs: []uint64{4, 5, 6},
	})
	require.NoError(t, err)
	ids := msg.GetFields()["token_ids"].GetListValue().GetValues()
	require.Len(t, ids, 3)
	assert.Equal(t, float64(6), ids[2].GetNumberValue())
	_, hasSingle := msg.GetFields()["token_id"]
	assert.False(t, hasSingle)
}

func TestEncodeRoundTripFormats(t *testing.T) {
	card := models.Card{TokenID: 1, Attributes: models.Attributes{Element: "Grass", Power: 45, Defense: 45, Special: "Vine Whip", Rarity: 1}}
	msg, err := ConvertCardToProto(card)
	require.NoError(t, err)

	for _, format := range []Format{FormatJSON, FormatProto} {
		data, err := Encode(format, msg)
		require.NoError(t, err)
		back, err := Decode(format, data)
		require.NoError(t, err)
		attrs := back.GetFields()["attributes"].GetStructValue().GetFields()
		assert.Equal(t, "Vine Whip", attrs["special"].GetStringValue(), "format %s", format)
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("proto")
	require.NoError(t, err)
	assert.Equal(t, FormatProto, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}
