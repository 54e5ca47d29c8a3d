package llmutils

import (
	"encoding/json"
	"maps"

	"github.com/effective-security/askmodel/pkg/llms"
)

func ToJSON(val any) string {
	js, _ := json.Marshal(val)
	return string(js)
}

// MergeInputs returns configInputs overridden by userInputs.
// A nil user value is treated as absent and does not override the default.
func MergeInputs(configInputs map[string]any, userInputs map[string]any) map[string]any {
	res := make(map[string]any, len(configInputs)+len(userInputs))
	maps.Copy(res, configInputs)
	for k, v := range userInputs {
		if v == nil {
			continue
		}
		res[k] = v
	}
	return res
}

// CountMessagesContentSize counts the size of the content in the messages
func CountMessagesContentSize(msgs []llms.Message) uint64 {
	var size uint64
	for _, mc := range msgs {
		size += uint64(len(mc.Role))
		for _, p := range mc.Parts {
			switch pp := p.(type) {
			case llms.TextContent:
				size += uint64(len(pp.Text))
			case llms.BinaryContent:
				size += uint64(len(pp.MIMEType))
				size += uint64(len(pp.Data))
			}
		}
	}
	return size
}

// CountResponseContentSize counts the size of the content in the content response
func CountResponseContentSize(resp *llms.ContentResponse) uint64 {
	if resp == nil {
		return 0
	}
	var size uint64
	for _, choice := range resp.Choices {
		size += uint64(len(choice.Content))
	}
	return size
}
