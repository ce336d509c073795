package ldap

import (
	"fmt"
	"io"

	ber "github.com/go-asn1-ber/asn1-ber"
)

// Protocol application tags (RFC 4511 §4).
const (
	appBindRequest           ber.Tag = 0
	appBindResponse          ber.Tag = 1
	appUnbindRequest         ber.Tag = 2
	appSearchRequest         ber.Tag = 3
	appSearchResultEntry     ber.Tag = 4
	appSearchResultDone      ber.Tag = 5
	appModifyRequest         ber.Tag = 6
	appModifyResponse        ber.Tag = 7
	appAddRequest            ber.Tag = 8
	appAddResponse           ber.Tag = 9
	appDelRequest            ber.Tag = 10
	appDelResponse           ber.Tag = 11
	appModifyDNRequest       ber.Tag = 12
	appModifyDNResponse      ber.Tag = 13
	appCompareRequest        ber.Tag = 14
	appCompareResponse       ber.Tag = 15
	appAbandonRequest        ber.Tag = 16
	appSearchResultReference ber.Tag = 19
	appExtendedRequest       ber.Tag = 23
	appExtendedResponse      ber.Tag = 24
	appIntermediateResponse  ber.Tag = 25
)

// CodecService is the codec boundary: it encodes request messages to bytes
// and decodes response messages read from a byte stream. The asn1-ber-backed
// implementation below is the adapter; it does not reimplement a
// general-purpose BER/DER library.
type CodecService interface {
	ReadMessage(r io.Reader) (*inboundMessage, error)

	EncodeBindRequestSimple(msgID uint32, name, password string, controls []Control) []byte
	EncodeBindRequestSASL(msgID uint32, mechanism string, credentials []byte, controls []Control) []byte
	EncodeUnbindRequest(msgID uint32) []byte
	EncodeSearchRequest(msgID uint32, req *SearchRequest) ([]byte, error)
	EncodeAddRequest(msgID uint32, req *AddRequest) []byte
	EncodeDeleteRequest(msgID uint32, req *DeleteRequest) []byte
	EncodeModifyRequest(msgID uint32, req *ModifyRequest) []byte
	EncodeModifyDNRequest(msgID uint32, req *ModifyDNRequest) []byte
	EncodeCompareRequest(msgID uint32, req *CompareRequest) []byte
	EncodeExtendedRequest(msgID uint32, req *ExtendedRequest) []byte
	EncodeAbandonRequest(msgID uint32, targetID uint32) []byte
}

// inboundMessage is the decoded shape of one LDAPMessage envelope. Only the
// fields relevant to Kind are populated; this is the tagged-variant the
// inbound dispatcher switches on to route to the right sink.
type inboundMessage struct {
	MessageID uint32
	Kind      responseKind

	Result       *Result // Bind/Add/Delete/Modify/ModifyDN/Compare/SearchDone
	SASLCreds    []byte  // BindResponse serverSaslCreds
	Entry        *SearchResultEntryMsg
	Reference    *SearchResultReferenceMsg
	Extended     *ExtendedResponseMsg
	Intermediate *IntermediateResponseMsg
}

type berCodec struct{}

func newBERCodec() CodecService { return berCodec{} }

func envelope(msgID uint32) *ber.Packet {
	p := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "LDAP Message")
	p.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, int64(msgID), "MessageID"))
	return p
}

func encodeControls(controls []Control) *ber.Packet {
	if len(controls) == 0 {
		return nil
	}
	seq := ber.Encode(ber.ClassContext, ber.TypeConstructed, 0, nil, "Controls")
	for _, c := range controls {
		ctrl := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Control")
		ctrl.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, c.OID, "Control Type"))
		if c.Critical {
			ctrl.AppendChild(ber.NewBoolean(ber.ClassUniversal, ber.TypePrimitive, ber.TagBoolean, true, "Criticality"))
		}
		if c.HasValue {
			ctrl.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, string(c.Value), "Control Value"))
		}
		seq.AppendChild(ctrl)
	}
	return seq
}

func decodeControls(p *ber.Packet) []Control {
	if p == nil {
		return nil
	}
	controls := make([]Control, 0, len(p.Children))
	for _, ctrl := range p.Children {
		if len(ctrl.Children) == 0 {
			continue
		}
		c := Control{}
		c.OID, _ = ctrl.Children[0].Value.(string)
		idx := 1
		if idx < len(ctrl.Children) {
			if b, ok := ctrl.Children[idx].Value.(bool); ok {
				c.Critical = b
				idx++
			}
		}
		if idx < len(ctrl.Children) {
			if s, ok := ctrl.Children[idx].Value.(string); ok {
				c.Value = []byte(s)
				c.HasValue = true
			} else if ctrl.Children[idx].Data != nil {
				c.Value = ctrl.Children[idx].Data.Bytes()
				c.HasValue = true
			}
		}
		controls = append(controls, c)
	}
	return controls
}

// findControlsChild locates the optional context-specific [0] Controls
// sequence that trails every LDAPMessage, distinguishing it from the
// protocolOp child that precedes it.
func findControlsChild(msg *ber.Packet) *ber.Packet {
	if len(msg.Children) < 3 {
		return nil
	}
	last := msg.Children[len(msg.Children)-1]
	if last.ClassType == ber.ClassContext && last.Tag == 0 {
		return last
	}
	return nil
}

func (berCodec) EncodeUnbindRequest(msgID uint32) []byte {
	env := envelope(msgID)
	op := ber.Encode(ber.ClassApplication, ber.TypePrimitive, appUnbindRequest, nil, "Unbind Request")
	env.AppendChild(op)
	return env.Bytes()
}

func (berCodec) EncodeBindRequestSimple(msgID uint32, name, password string, controls []Control) []byte {
	env := envelope(msgID)
	op := ber.Encode(ber.ClassApplication, ber.TypeConstructed, appBindRequest, nil, "Bind Request")
	op.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, int64(3), "Version"))
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, name, "Name"))
	op.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 0, password, "Simple Auth"))
	env.AppendChild(op)
	if c := encodeControls(controls); c != nil {
		env.AppendChild(c)
	}
	return env.Bytes()
}

func (berCodec) EncodeBindRequestSASL(msgID uint32, mechanism string, credentials []byte, controls []Control) []byte {
	env := envelope(msgID)
	op := ber.Encode(ber.ClassApplication, ber.TypeConstructed, appBindRequest, nil, "Bind Request")
	op.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, int64(3), "Version"))
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, "", "Name"))
	sasl := ber.Encode(ber.ClassContext, ber.TypeConstructed, 3, nil, "SASL Auth")
	sasl.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, mechanism, "Mechanism"))
	if credentials != nil {
		sasl.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, string(credentials), "Credentials"))
	}
	op.AppendChild(sasl)
	env.AppendChild(op)
	if c := encodeControls(controls); c != nil {
		env.AppendChild(c)
	}
	return env.Bytes()
}

func (berCodec) EncodeAbandonRequest(msgID uint32, targetID uint32) []byte {
	env := envelope(msgID)
	op := ber.Encode(ber.ClassApplication, ber.TypePrimitive, appAbandonRequest, int64(targetID), "Abandon Request")
	env.AppendChild(op)
	return env.Bytes()
}

func (berCodec) EncodeDeleteRequest(msgID uint32, req *DeleteRequest) []byte {
	env := envelope(msgID)
	op := ber.Encode(ber.ClassApplication, ber.TypePrimitive, appDelRequest, req.DN, "Del Request")
	env.AppendChild(op)
	if c := encodeControls(req.Controls); c != nil {
		env.AppendChild(c)
	}
	return env.Bytes()
}

func encodeAttributeList(attrs map[string][]string) *ber.Packet {
	seq := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Attributes")
	for typ, vals := range attrs {
		a := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Attribute")
		a.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, typ, "Type"))
		set := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSet, nil, "Values")
		for _, v := range vals {
			set.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, v, "Value"))
		}
		a.AppendChild(set)
		seq.AppendChild(a)
	}
	return seq
}

func (berCodec) EncodeAddRequest(msgID uint32, req *AddRequest) []byte {
	env := envelope(msgID)
	op := ber.Encode(ber.ClassApplication, ber.TypeConstructed, appAddRequest, nil, "Add Request")
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, req.Entry.DN, "DN"))
	op.AppendChild(encodeAttributeList(req.Entry.Attributes))
	env.AppendChild(op)
	if c := encodeControls(req.Controls); c != nil {
		env.AppendChild(c)
	}
	return env.Bytes()
}

func modOpTag(op ModOp) int64 {
	switch op {
	case ModAdd:
		return 0
	case ModDelete:
		return 1
	case ModReplace:
		return 2
	case ModIncrement:
		return 3
	default:
		return 2
	}
}

func (berCodec) EncodeModifyRequest(msgID uint32, req *ModifyRequest) []byte {
	env := envelope(msgID)
	op := ber.Encode(ber.ClassApplication, ber.TypeConstructed, appModifyRequest, nil, "Modify Request")
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, req.DN, "DN"))
	changes := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Changes")
	for _, m := range req.Modifications {
		change := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Change")
		change.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagEnumerated, modOpTag(m.Op), "Operation"))
		attr := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Modification")
		attr.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, m.Attribute, "Type"))
		set := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSet, nil, "Values")
		for _, v := range m.Values {
			set.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, v, "Value"))
		}
		attr.AppendChild(set)
		change.AppendChild(attr)
		changes.AppendChild(change)
	}
	op.AppendChild(changes)
	env.AppendChild(op)
	if c := encodeControls(req.Controls); c != nil {
		env.AppendChild(c)
	}
	return env.Bytes()
}

func (berCodec) EncodeModifyDNRequest(msgID uint32, req *ModifyDNRequest) []byte {
	env := envelope(msgID)
	op := ber.Encode(ber.ClassApplication, ber.TypeConstructed, appModifyDNRequest, nil, "ModifyDN Request")
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, req.DN, "DN"))
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, req.NewRDN, "New RDN"))
	op.AppendChild(ber.NewBoolean(ber.ClassUniversal, ber.TypePrimitive, ber.TagBoolean, req.DeleteOldRDN, "Delete Old RDN"))
	if req.NewSuperior != "" {
		op.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 0, req.NewSuperior, "New Superior"))
	}
	env.AppendChild(op)
	if c := encodeControls(req.Controls); c != nil {
		env.AppendChild(c)
	}
	return env.Bytes()
}

func (berCodec) EncodeCompareRequest(msgID uint32, req *CompareRequest) []byte {
	env := envelope(msgID)
	op := ber.Encode(ber.ClassApplication, ber.TypeConstructed, appCompareRequest, nil, "Compare Request")
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, req.DN, "DN"))
	ava := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "AVA")
	ava.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, req.Attribute, "Attribute"))
	ava.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, req.Value, "Value"))
	op.AppendChild(ava)
	env.AppendChild(op)
	if c := encodeControls(req.Controls); c != nil {
		env.AppendChild(c)
	}
	return env.Bytes()
}

func (berCodec) EncodeExtendedRequest(msgID uint32, req *ExtendedRequest) []byte {
	env := envelope(msgID)
	op := ber.Encode(ber.ClassApplication, ber.TypeConstructed, appExtendedRequest, nil, "Extended Request")
	op.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 0, req.Name, "Request Name"))
	if req.HasValue {
		op.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 1, string(req.Value), "Request Value"))
	}
	env.AppendChild(op)
	if c := encodeControls(req.Controls); c != nil {
		env.AppendChild(c)
	}
	return env.Bytes()
}

func (berCodec) EncodeSearchRequest(msgID uint32, req *SearchRequest) ([]byte, error) {
	env := envelope(msgID)
	op := ber.Encode(ber.ClassApplication, ber.TypeConstructed, appSearchRequest, nil, "Search Request")
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, req.BaseDN, "Base DN"))
	op.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagEnumerated, int64(req.Scope), "Scope"))
	op.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagEnumerated, int64(req.DerefAliases), "Deref Aliases"))
	op.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, int64(req.SizeLimit), "Size Limit"))
	op.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, int64(req.TimeLimit), "Time Limit"))
	op.AppendChild(ber.NewBoolean(ber.ClassUniversal, ber.TypePrimitive, ber.TagBoolean, req.TypesOnly, "Types Only"))

	filterPkt, err := compileFilter(req.Filter)
	if err != nil {
		return nil, err
	}
	op.AppendChild(filterPkt)

	attrs := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Attributes")
	for _, a := range req.Attributes {
		attrs.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, a, "Attribute"))
	}
	op.AppendChild(attrs)

	env.AppendChild(op)

	controls := req.Controls
	if req.IgnoreReferrals {
		controls = append(append([]Control{}, controls...), ManageDSAITControl(true))
	}
	if c := encodeControls(controls); c != nil {
		env.AppendChild(c)
	}
	return env.Bytes(), nil
}

func decodeResult(op *ber.Packet, startIdx int) *Result {
	r := &Result{}
	if len(op.Children) > startIdx {
		if v, ok := op.Children[startIdx].Value.(int64); ok {
			r.ResultCode = ResultCode(v)
		}
	}
	if len(op.Children) > startIdx+1 {
		r.MatchedDN, _ = op.Children[startIdx+1].Value.(string)
	}
	if len(op.Children) > startIdx+2 {
		r.DiagnosticMessage, _ = op.Children[startIdx+2].Value.(string)
	}
	for i := startIdx + 3; i < len(op.Children); i++ {
		child := op.Children[i]
		if child.ClassType == ber.ClassContext && child.Tag == 3 {
			for _, ref := range child.Children {
				if s, ok := ref.Value.(string); ok {
					r.Referrals = append(r.Referrals, s)
				}
			}
		}
	}
	return r
}

func decodeAttributes(seq *ber.Packet) map[string][]string {
	attrs := make(map[string][]string, len(seq.Children))
	for _, a := range seq.Children {
		if len(a.Children) < 2 {
			continue
		}
		typ, _ := a.Children[0].Value.(string)
		vals := make([]string, 0, len(a.Children[1].Children))
		for _, v := range a.Children[1].Children {
			if s, ok := v.Value.(string); ok {
				vals = append(vals, s)
			} else if v.Data != nil {
				vals = append(vals, v.Data.String())
			}
		}
		attrs[typ] = vals
	}
	return attrs
}

// ReadMessage reads one LDAPMessage envelope from r and decodes it into the
// tagged inboundMessage variant the dispatcher switches on.
func (berCodec) ReadMessage(r io.Reader) (*inboundMessage, error) {
	packet, err := ber.ReadPacket(r)
	if err != nil {
		return nil, err
	}
	if len(packet.Children) < 2 {
		return nil, fmt.Errorf("ldap: malformed message envelope")
	}

	msgID, _ := packet.Children[0].Value.(int64)
	op := packet.Children[1]
	controls := decodeControls(findControlsChild(packet))

	msg := &inboundMessage{MessageID: uint32(msgID)}

	switch op.Tag {
	case appBindResponse:
		msg.Kind = kindBindResponse
		msg.Result = decodeResult(op, 0)
		msg.Result.Controls = controls
		for _, child := range op.Children {
			if child.ClassType == ber.ClassContext && child.Tag == 7 {
				if s, ok := child.Value.(string); ok {
					msg.SASLCreds = []byte(s)
				} else if child.Data != nil {
					msg.SASLCreds = child.Data.Bytes()
				}
			}
		}
	case appAddResponse:
		msg.Kind = kindAddResponse
		msg.Result = decodeResult(op, 0)
		msg.Result.Controls = controls
	case appDelResponse:
		msg.Kind = kindDeleteResponse
		msg.Result = decodeResult(op, 0)
		msg.Result.Controls = controls
	case appModifyResponse:
		msg.Kind = kindModifyResponse
		msg.Result = decodeResult(op, 0)
		msg.Result.Controls = controls
	case appModifyDNResponse:
		msg.Kind = kindModifyDNResponse
		msg.Result = decodeResult(op, 0)
		msg.Result.Controls = controls
	case appCompareResponse:
		msg.Kind = kindCompareResponse
		msg.Result = decodeResult(op, 0)
		msg.Result.Controls = controls
	case appSearchResultDone:
		msg.Kind = kindSearchResultDone
		msg.Result = decodeResult(op, 0)
		msg.Result.Controls = controls
	case appSearchResultEntry:
		msg.Kind = kindSearchResultEntry
		entry := &SearchResultEntryMsg{Controls: controls}
		if len(op.Children) > 0 {
			entry.DN, _ = op.Children[0].Value.(string)
		}
		if len(op.Children) > 1 {
			entry.Attributes = decodeAttributes(op.Children[1])
		}
		msg.Entry = entry
	case appSearchResultReference:
		msg.Kind = kindSearchResultReference
		ref := &SearchResultReferenceMsg{}
		for _, c := range op.Children {
			if s, ok := c.Value.(string); ok {
				ref.URLs = append(ref.URLs, s)
			}
		}
		msg.Reference = ref
	case appExtendedResponse:
		msg.Kind = kindExtendedResponse
		ext := &ExtendedResponseMsg{Result: *decodeResult(op, 0)}
		ext.Controls = controls
		for _, c := range op.Children {
			if c.ClassType != ber.ClassContext {
				continue
			}
			switch c.Tag {
			case 10:
				ext.Name, _ = c.Value.(string)
			case 11:
				if s, ok := c.Value.(string); ok {
					ext.Value = []byte(s)
				} else if c.Data != nil {
					ext.Value = c.Data.Bytes()
				}
			}
		}
		if ext.Name == OIDNoticeOfDisconnect {
			msg.Kind = kindNoticeOfDisconnect
		}
		msg.Extended = ext
	case appIntermediateResponse:
		msg.Kind = kindIntermediateResponse
		inter := &IntermediateResponseMsg{}
		for _, c := range op.Children {
			if c.ClassType != ber.ClassContext {
				continue
			}
			switch c.Tag {
			case 0:
				inter.Name, _ = c.Value.(string)
			case 1:
				if s, ok := c.Value.(string); ok {
					inter.Value = []byte(s)
				} else if c.Data != nil {
					inter.Value = c.Data.Bytes()
				}
			}
		}
		msg.Intermediate = inter
	default:
		return nil, fmt.Errorf("ldap: unrecognized response application tag %d", op.Tag)
	}

	return msg, nil
}
