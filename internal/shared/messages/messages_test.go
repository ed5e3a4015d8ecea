package messages

import "testing"

func TestMessageText_Render(t *testing.T) {
	m := Default().LinkLoginRequired.Render(map[string]string{"institution": "Chase"})
	if m.Title != "Reconnect Chase" {
		t.Errorf("title = %q", m.Title)
	}
	if m.Body != "Your connection to Chase needs you to sign in again to keep balances up to date." {
		t.Errorf("body = %q", m.Body)
	}

	untouched := MessageText{Title: "{unknown}"}.Render(nil)
	if untouched.Title != "{unknown}" {
		t.Errorf("title = %q", untouched.Title)
	}
}
