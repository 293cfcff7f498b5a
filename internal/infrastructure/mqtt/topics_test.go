package mqtt

import (
	"errors"
	"strings"
	"testing"
)

func TestValidatePublishTopic(t *testing.T) {
	tests := []struct {
		topic   string
		wantErr bool
	}{
		{topic: "recorder/status", wantErr: false},
		{topic: "a", wantErr: false},
		{topic: "/leading/slash", wantErr: false},
		{topic: "", wantErr: true},
		{topic: "a/+/c", wantErr: true},
		{topic: "a/#", wantErr: true},
		{topic: "nul\x00byte", wantErr: true},
		{topic: strings.Repeat("x", maxTopicLength+1), wantErr: true},
	}

	for _, tt := range tests {
		err := validatePublishTopic(tt.topic)
		if (err != nil) != tt.wantErr {
			t.Errorf("validatePublishTopic(%.20q) error = %v, wantErr %v", tt.topic, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidTopic) {
			t.Errorf("validatePublishTopic(%.20q) error = %v, want ErrInvalidTopic", tt.topic, err)
		}
	}
}

func TestValidateSubscribeTopic(t *testing.T) {
	tests := []struct {
		filter  string
		wantErr bool
	}{
		{filter: "recorder/status", wantErr: false},
		{filter: "sensors/+/temp", wantErr: false},
		{filter: "sensors/#", wantErr: false},
		{filter: "#", wantErr: false},
		{filter: "+", wantErr: false},
		{filter: "+/+/#", wantErr: false},
		{filter: "", wantErr: true},
		{filter: "sensors/room+/temp", wantErr: true},
		{filter: "sensors/#/temp", wantErr: true},
		{filter: "sensors#", wantErr: true},
	}

	for _, tt := range tests {
		err := validateSubscribeTopic(tt.filter)
		if (err != nil) != tt.wantErr {
			t.Errorf("validateSubscribeTopic(%q) error = %v, wantErr %v", tt.filter, err, tt.wantErr)
		}
	}
}
