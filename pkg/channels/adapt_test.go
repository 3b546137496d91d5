package channels

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/dukex/inboxflow/pkg/models"
	"github.com/stretchr/testify/assert"
)

func buttons(n int) []models.Button {
	list := make([]models.Button, n)
	for i := range list {
		list[i] = models.Button{Title: strings.Repeat("b", i+1)}
	}

	return list
}

func TestCapabilities_Table(t *testing.T) {
	tests := []struct {
		channel       models.ChannelType
		maxText       int
		maxButtons    int
		lists         bool
		quickReplies  bool
		inlineKeyboad bool
	}{
		{models.ChannelInstagram, 1000, 4, false, true, false},
		{models.ChannelMessenger, 2000, 3, true, true, false},
		{models.ChannelWhatsApp, 4096, 3, true, false, false},
		{models.ChannelTelegram, 4096, 8, false, false, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.channel), func(t *testing.T) {
			caps := Capabilities(tt.channel)

			assert.True(t, Supported(tt.channel))
			assert.Equal(t, tt.maxText, caps.MaxTextLength)
			assert.Equal(t, tt.maxButtons, caps.MaxButtons)
			assert.Equal(t, tt.lists, caps.SupportsLists)
			assert.Equal(t, tt.quickReplies, caps.SupportsQuickReplies)
			assert.Equal(t, tt.inlineKeyboad, caps.SupportsInlineKeyboard)
			assert.True(t, caps.SupportsButtons)
			assert.True(t, caps.SupportsMedia)
		})
	}
}

func TestCapabilities_UnknownChannel(t *testing.T) {
	caps := Capabilities("sms")

	assert.False(t, Supported("sms"))
	assert.Equal(t, models.ChannelCapabilities{MaxTextLength: 500}, caps)
}

func TestAdapt_TruncatesText(t *testing.T) {
	msg := models.NormalizedMessage{Text: strings.Repeat("a", 5000)}

	adapted := Adapt(msg, models.ChannelCapabilities{MaxTextLength: 1000})

	assert.Len(t, adapted.Text, 1000)
	assert.Equal(t, strings.Repeat("a", 997)+"...", adapted.Text)
}

func TestAdapt_TruncatesByRune(t *testing.T) {
	msg := models.NormalizedMessage{Text: strings.Repeat("é", 20)}

	adapted := Adapt(msg, models.ChannelCapabilities{MaxTextLength: 10})

	assert.Equal(t, 10, utf8.RuneCountInString(adapted.Text))
	assert.True(t, strings.HasSuffix(adapted.Text, "..."))
}

func TestAdapt_TextWithinLimitUntouched(t *testing.T) {
	adapted := Adapt(models.NormalizedMessage{Text: "hello"}, Capabilities(models.ChannelInstagram))

	assert.Equal(t, "hello", adapted.Text)
}

func TestAdapt_Buttons(t *testing.T) {
	t.Run("dropped when unsupported", func(t *testing.T) {
		adapted := Adapt(models.NormalizedMessage{Buttons: buttons(2)}, models.ChannelCapabilities{MaxTextLength: 100, MaxButtons: 3})

		assert.Nil(t, adapted.Buttons)
	})

	t.Run("truncated to max", func(t *testing.T) {
		adapted := Adapt(models.NormalizedMessage{Buttons: buttons(5)}, Capabilities(models.ChannelMessenger))

		assert.Equal(t, buttons(3), adapted.Buttons)
	})

	t.Run("kept when under max", func(t *testing.T) {
		adapted := Adapt(models.NormalizedMessage{Buttons: buttons(2)}, Capabilities(models.ChannelTelegram))

		assert.Equal(t, buttons(2), adapted.Buttons)
	})
}

func TestAdapt_StripsUnsupportedFeatures(t *testing.T) {
	msg := models.NormalizedMessage{
		Text:         "pick one",
		QuickReplies: []string{"a", "b"},
		ListOptions:  []models.ListOption{{ID: "1", Title: "One"}},
		Media:        &models.Media{Type: models.MediaImage, URL: "https://cdn.example.com/a.png"},
		Template:     &models.MessageTemplate{Name: "welcome"},
	}

	whatsapp := Adapt(msg, Capabilities(models.ChannelWhatsApp))
	assert.Nil(t, whatsapp.QuickReplies)
	assert.Equal(t, msg.ListOptions, whatsapp.ListOptions)
	assert.Equal(t, msg.Media, whatsapp.Media)
	assert.Equal(t, msg.Template, whatsapp.Template)

	instagram := Adapt(msg, Capabilities(models.ChannelInstagram))
	assert.Equal(t, msg.QuickReplies, instagram.QuickReplies)
	assert.Nil(t, instagram.ListOptions)

	unknown := Adapt(msg, Capabilities("sms"))
	assert.Equal(t, "pick one", unknown.Text)
	assert.Nil(t, unknown.QuickReplies)
	assert.Nil(t, unknown.ListOptions)
	assert.Nil(t, unknown.Media)
}

func TestAdapt_DropsUnsupportedMediaType(t *testing.T) {
	document := models.NormalizedMessage{
		Text:  "menu",
		Media: &models.Media{Type: models.MediaDocument, URL: "https://cdn.example.com/menu.pdf"},
	}

	instagram := Adapt(document, Capabilities(models.ChannelInstagram))
	assert.Equal(t, "menu", instagram.Text)
	assert.Nil(t, instagram.Media)

	messenger := Adapt(document, Capabilities(models.ChannelMessenger))
	assert.Equal(t, document.Media, messenger.Media)
}
