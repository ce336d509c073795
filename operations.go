package ldap

import "context"

// runSingleShot is the common request/response shape shared by Add, Delete,
// Modify, ModifyDN, and Compare: allocate a message id, write the
// encoded request, wait for either the matching response or the effective
// deadline, abandoning on timeout.
func (c *Conn) runSingleShot(ctx context.Context, op string, encode func(msgID uint32) []byte) (*Result, error) {
	if !c.IsBound() && c.getState() != stateSecured && c.getState() != stateConnected {
		return nil, invalidArgument(op, "connection is not in a usable state")
	}

	deadline := effectiveDeadline(0, c.cfg.ReadOperationTimeout, c.cfg.Timeout)
	opCtx, cancel := contextForDeadline(ctx, deadline)
	defer cancel()

	s := newSingleShotSink()
	id, err := c.doRequest(encode, s)
	if err != nil {
		return nil, err
	}

	select {
	case res := <-s.done:
		if res.err != nil {
			return nil, res.err
		}
		return res.msg.Result, nil
	case <-opCtx.Done():
		_ = c.abandon(id)
		return nil, newErr(op, KindTimeout, "operation timed out", opCtx.Err())
	}
}

// Add performs an Add operation and returns the server's result value; the
// caller decides whether to treat a non-success code as an error via
// Result.Err.
func (c *Conn) Add(ctx context.Context, req *AddRequest) (*Result, error) {
	if req == nil || req.Entry.DN == "" {
		return nil, invalidArgument("Add", "entry DN must not be empty")
	}
	return c.runSingleShot(ctx, "Add", func(id uint32) []byte {
		return c.cfg.Codec.EncodeAddRequest(id, req)
	})
}

// Delete performs a Delete operation.
func (c *Conn) Delete(ctx context.Context, req *DeleteRequest) (*Result, error) {
	if req == nil || req.DN == "" {
		return nil, invalidArgument("Delete", "DN must not be empty")
	}
	return c.runSingleShot(ctx, "Delete", func(id uint32) []byte {
		return c.cfg.Codec.EncodeDeleteRequest(id, req)
	})
}

// DeleteTree deletes dn and everything beneath it in one request, by
// attaching the Subtree-Delete control (OID 1.2.840.113556.1.4.805) to the
// DeleteRequest. It first confirms via RootDSE that the server advertises
// the control, returning KindNotSupported without writing anything to the
// wire if it does not.
func (c *Conn) DeleteTree(ctx context.Context, dn string) (*Result, error) {
	if dn == "" {
		return nil, invalidArgument("DeleteTree", "DN must not be empty")
	}
	dse, err := c.ReadRootDSE(ctx)
	if err != nil {
		return nil, err
	}
	if !dse.IsControlSupported(OIDSubtreeDelete) {
		return nil, newErr("DeleteTree", KindNotSupported, "server does not advertise the subtree-delete control", nil)
	}
	return c.Delete(ctx, &DeleteRequest{
		DN:       dn,
		Controls: []Control{SubtreeDeleteControl(true)},
	})
}

// Modify performs a Modify operation.
func (c *Conn) Modify(ctx context.Context, req *ModifyRequest) (*Result, error) {
	if req == nil || req.DN == "" {
		return nil, invalidArgument("Modify", "DN must not be empty")
	}
	if len(req.Modifications) == 0 {
		return nil, invalidArgument("Modify", "at least one modification is required")
	}
	return c.runSingleShot(ctx, "Modify", func(id uint32) []byte {
		return c.cfg.Codec.EncodeModifyRequest(id, req)
	})
}

// ModifyDN performs a rename, move, or combined moveAndRename.
func (c *Conn) ModifyDN(ctx context.Context, req *ModifyDNRequest) (*Result, error) {
	if req == nil || req.DN == "" || req.NewRDN == "" {
		return nil, invalidArgument("ModifyDN", "DN and NewRDN must not be empty")
	}
	return c.runSingleShot(ctx, "ModifyDN", func(id uint32) []byte {
		return c.cfg.Codec.EncodeModifyDNRequest(id, req)
	})
}

// Rename changes dn's RDN to newRDN, leaving it under its current superior.
// deleteOldRDN controls whether the prior RDN attribute value is removed
// from the entry, as it would usually be.
func (c *Conn) Rename(ctx context.Context, dn, newRDN string, deleteOldRDN bool) (*Result, error) {
	return c.ModifyDN(ctx, &ModifyDNRequest{
		DN:           dn,
		NewRDN:       newRDN,
		DeleteOldRDN: deleteOldRDN,
	})
}

// Move relocates dn to newSuperior, keeping its current RDN. The RDN is
// taken verbatim from dn's leftmost component.
func (c *Conn) Move(ctx context.Context, dn, newSuperior string) (*Result, error) {
	return c.ModifyDN(ctx, &ModifyDNRequest{
		DN:           dn,
		NewRDN:       firstRDN(dn),
		DeleteOldRDN: true,
		NewSuperior:  newSuperior,
	})
}

// MoveAndRename relocates dn to newSuperior and renames it to newRDN in a
// single ModifyDN operation.
func (c *Conn) MoveAndRename(ctx context.Context, dn, newRDN, newSuperior string, deleteOldRDN bool) (*Result, error) {
	return c.ModifyDN(ctx, &ModifyDNRequest{
		DN:           dn,
		NewRDN:       newRDN,
		DeleteOldRDN: deleteOldRDN,
		NewSuperior:  newSuperior,
	})
}

// firstRDN returns dn's leftmost RDN component, splitting on the first
// unescaped comma. It is a best-effort substitute for full DN parsing
// (DNParser's job, see contracts.go), sufficient for Move to preserve an
// entry's existing RDN.
func firstRDN(dn string) string {
	for i := 0; i < len(dn); i++ {
		if dn[i] == '\\' {
			i++
			continue
		}
		if dn[i] == ',' {
			return dn[:i]
		}
	}
	return dn
}

// Compare performs a Compare operation. A result code of CompareTrue or
// CompareFalse is not an error; only Result.Err would surface those if the
// caller treats them as such, which it does not by default.
func (c *Conn) Compare(ctx context.Context, req *CompareRequest) (bool, error) {
	if req == nil || req.DN == "" || req.Attribute == "" {
		return false, invalidArgument("Compare", "DN and Attribute must not be empty")
	}
	res, err := c.runSingleShot(ctx, "Compare", func(id uint32) []byte {
		return c.cfg.Codec.EncodeCompareRequest(id, req)
	})
	if err != nil {
		return false, err
	}
	switch res.ResultCode {
	case ResultCompareTrue:
		return true, nil
	case ResultCompareFalse:
		return false, nil
	default:
		return false, res.Err("Compare")
	}
}

// Extended performs a generic Extended operation and returns the decoded
// response with its Name/Value payload as received. It does not consult an
// ExtendedOIDRegistry (rootdse.go); interpreting the payload of a known OID
// is left to the caller.
func (c *Conn) Extended(ctx context.Context, req *ExtendedRequest) (*ExtendedResponseMsg, error) {
	if req == nil || req.Name == "" {
		return nil, invalidArgument("Extended", "request name OID must not be empty")
	}

	deadline := effectiveDeadline(0, c.cfg.ReadOperationTimeout, c.cfg.Timeout)
	opCtx, cancel := contextForDeadline(ctx, deadline)
	defer cancel()

	s := newSingleShotSink()
	id, err := c.doRequest(func(msgID uint32) []byte {
		return c.cfg.Codec.EncodeExtendedRequest(msgID, req)
	}, s)
	if err != nil {
		return nil, err
	}

	select {
	case res := <-s.done:
		if res.err != nil {
			return nil, res.err
		}
		return res.msg.Extended, nil
	case <-opCtx.Done():
		_ = c.abandon(id)
		return nil, newErr("Extended", KindTimeout, "extended operation timed out", opCtx.Err())
	}
}

// Abandon requests cancellation of the in-flight operation identified by
// messageID. It has no response per RFC 4511 §4.11; if a sink is still
// registered under messageID it is failed locally with KindCancelled.
func (c *Conn) Abandon(messageID uint32) error {
	return c.abandon(messageID)
}

// Unbind gracefully terminates the session; it is equivalent to Close but
// named to match the UnbindRequest operation (RFC 4511 §4.3) for callers
// who expect that name.
func (c *Conn) Unbind() error {
	return c.Close()
}
