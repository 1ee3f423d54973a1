package api

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/funnelworks/leadpipe/internal/models"
)

// extractInbound turns a raw WhatsApp bridge webhook payload into a
// models.Response. The second return value names the reason the payload was
// deliberately ignored; it is empty when the response is usable.
//
// Bridges differ in envelope shape, so extraction is defensive: the message
// may sit under "data" or at the top level, the sender JID under "jid" or
// "key.remoteJid", and an interactive reply in one of several nestings. The
// selected row ID of a list reply wins over plain text so intent codes
// survive the trip.
func extractInbound(payload map[string]interface{}) (models.Response, string) {
	if isAck(payload) {
		return models.Response{}, "ack"
	}

	data, ok := digMap(payload, "data")
	if !ok {
		data = payload
	}

	key, _ := digMap(data, "key")
	if fromMe, _ := key["fromMe"].(bool); fromMe {
		return models.Response{}, "own message"
	}

	phone := extractPhone(payload, data, key)
	if phone == "" {
		return models.Response{}, "no sender"
	}

	name := digString(data, "pushName")
	if name == "" {
		name = digString(data, "senderName")
	}

	msg, _ := digMap(data, "message")
	body := parseSelectedRowID(msg)
	button := body != ""
	if body == "" {
		body = extractText(msg)
	}
	if body == "" {
		return models.Response{}, "no text content"
	}

	return models.Response{
		From:   phone,
		Name:   name,
		Body:   body,
		Button: button,
		Time:   time.Now().Unix(),
	}, ""
}

// isAck recognizes delivery acknowledgement events.
func isAck(payload map[string]interface{}) bool {
	if mt := digString(payload, "messageType"); strings.Contains(mt, "ack") {
		return true
	}
	if evt := digString(payload, "event"); strings.Contains(evt, "ack") {
		return true
	}
	return false
}

// extractPhone resolves the sender's phone: the JID with its server suffix
// stripped and non-digits removed, falling back to the group participant.
func extractPhone(payload, data, key map[string]interface{}) string {
	candidates := []string{
		digString(key, "remoteJid"),
		digString(data, "jid"),
		digString(payload, "jid"),
	}
	for _, jid := range candidates {
		if p := jidDigits(jid); p != "" {
			// Group JIDs identify the chat, not the sender.
			if strings.HasSuffix(jid, "@g.us") {
				if participant := jidDigits(digString(key, "participant")); participant != "" {
					return participant
				}
				continue
			}
			return p
		}
	}
	return jidDigits(digString(key, "participant"))
}

// jidDigits strips the @server suffix and keeps digits only.
func jidDigits(jid string) string {
	if jid == "" {
		return ""
	}
	if at := strings.IndexByte(jid, '@'); at >= 0 {
		jid = jid[:at]
	}
	var b strings.Builder
	for _, r := range jid {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// parseSelectedRowID walks the interactive-reply nestings bridges produce.
func parseSelectedRowID(msg map[string]interface{}) string {
	if msg == nil {
		return ""
	}
	if id := digString(msg, "listResponseMessage", "singleSelectReply", "selectedRowId"); id != "" {
		return id
	}
	// Some bridges wrap the reply one level deeper.
	if inner, ok := digMap(msg, "interactiveResponseMessage"); ok {
		if id := parseNativeFlowReply(inner); id != "" {
			return id
		}
	}
	if id := parseNativeFlowReply(msg); id != "" {
		return id
	}
	if id := digString(msg, "buttonsResponseMessage", "selectedButtonId"); id != "" {
		return id
	}
	return ""
}

// parseNativeFlowReply decodes nativeFlowResponseMessage.paramsJson, a JSON
// string carrying {"id": "<row id>"}.
func parseNativeFlowReply(msg map[string]interface{}) string {
	raw := digString(msg, "nativeFlowResponseMessage", "paramsJson")
	if raw == "" {
		return ""
	}
	var params struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return ""
	}
	return params.ID
}

// extractText pulls plain text from the known message shapes.
func extractText(msg map[string]interface{}) string {
	if msg == nil {
		return ""
	}
	if t := digString(msg, "conversation"); t != "" {
		return t
	}
	if t := digString(msg, "extendedTextMessage", "text"); t != "" {
		return t
	}
	if t := digString(msg, "imageMessage", "caption"); t != "" {
		return t
	}
	if t := digString(msg, "videoMessage", "caption"); t != "" {
		return t
	}
	if t := digString(msg, "interactiveMessage", "body", "text"); t != "" {
		return t
	}
	if t := digString(msg, "text"); t != "" {
		return t
	}
	// A list reply without a row ID still carries the chosen row's title.
	if t := digString(msg, "listResponseMessage", "title"); t != "" {
		return t
	}
	// Some envelopes nest the real message one level down.
	if inner, ok := digMap(msg, "message"); ok {
		return extractText(inner)
	}
	return ""
}

// digMap walks nested maps and returns the map at the end of the path.
func digMap(m map[string]interface{}, keys ...string) (map[string]interface{}, bool) {
	cur := m
	for _, k := range keys {
		next, ok := cur[k].(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, cur != nil
}

// digString walks nested maps and returns the string at the end of the path.
func digString(m map[string]interface{}, keys ...string) string {
	if m == nil {
		return ""
	}
	if len(keys) == 1 {
		s, _ := m[keys[0]].(string)
		return s
	}
	parent, ok := digMap(m, keys[:len(keys)-1]...)
	if !ok {
		return ""
	}
	s, _ := parent[keys[len(keys)-1]].(string)
	return s
}
