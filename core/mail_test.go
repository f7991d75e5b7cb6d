package core

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmailTemplates(t *testing.T) {
	ParseEmailTemplates(nil)

	want := map[string][]string{
		"application_approved": {".txt", ".gohtml"},
		"application_rejected": {".txt", ".gohtml"},
		"session_booked":       {".txt"},
		"session_cancelled":    {".txt"},
		"session_reminder":     {".txt"},
		"session_rescheduled":  {".txt"},
	}
	require.Len(t, templates, len(want))
	for name, exts := range want {
		for _, ext := range exts {
			_, ok := templates[name][ext]
			assert.True(t, ok, name+ext)
		}
	}
}

func TestEmailMessage_Render(t *testing.T) {
	data := map[string]string{
		"Name":          "Baraka",
		"RecipientName": "Amani",
		"OtherName":     "Baraka",
		"Subject":       "Mathematics",
		"When":          "Mon 12 Oct 2026 10:00",
		"PreviousWhen":  "Sun 11 Oct 2026 09:00",
		"CancelledBy":   "Amani",
	}

	ParseEmailTemplates(nil)
	for name, entry := range templates {
		t.Run(name, func(t *testing.T) {
			msg := &EmailMessage{
				To:           []mail.Address{{Name: "Amani", Address: "amani@test.cd"}},
				Subject:      "Test",
				TemplateName: name,
				TemplateData: data,
			}
			require.NoError(t, msg.Render("TutorConnect", "http://localhost:3000"))
			assert.Contains(t, msg.TextContent, "Mathematics")
			assert.Contains(t, msg.TextContent, "The TutorConnect team")
			if _, ok := entry[".gohtml"]; ok {
				assert.Contains(t, msg.HTMLContent, "<strong>Mathematics</strong>")
				assert.Contains(t, msg.HTMLContent, `href="http://localhost:3000"`)
			} else {
				assert.Empty(t, msg.HTMLContent)
			}
			assert.True(t, msg.HasContent())
		})
	}

	t.Run("unknown template", func(t *testing.T) {
		msg := &EmailMessage{TemplateName: "nope"}
		assert.EqualError(t, msg.Render("TutorConnect", ""), `email template "nope" not found`)
	})

	t.Run("plain body", func(t *testing.T) {
		msg := &EmailMessage{BodyStr: "hi"}
		require.NoError(t, msg.Render("TutorConnect", ""))
		assert.Equal(t, "hi", msg.TextContent)
		assert.Empty(t, msg.HTMLContent)
	})
}
