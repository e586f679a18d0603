package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyword_Classify(t *testing.T) {
	k := NewKeyword()

	tests := []struct {
		name       string
		text       string
		wantMethod string
		wantPlan   string
	}{
		{
			name:       "ecocash payment report",
			text:       "I paid via EcoCash just now",
			wantMethod: "ecocash",
		},
		{
			name:       "onemoney with spaces",
			text:       "sent it through One Money",
			wantMethod: "onemoney",
		},
		{
			name:       "generic payment words",
			text:       "payment done, $0.50 sent",
			wantMethod: "cash",
		},
		{
			name:     "plan mention only",
			text:     "how much is the weekly option?",
			wantPlan: "weekly",
		},
		{
			name:       "plan and method together",
			text:       "paid for monthly with ecocash",
			wantMethod: "ecocash",
			wantPlan:   "monthly",
		},
		{
			name:     "two weeks phrasing",
			text:     "I want the two weeks package",
			wantPlan: "biweekly",
		},
		{
			name: "unrelated chatter",
			text: "hello, how are you today",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := k.Classify(tt.text)
			assert.Equal(t, tt.wantMethod, d.Method)
			assert.Equal(t, tt.wantPlan, d.Plan)
		})
	}
}
