package server

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dotside-studios/nfc-bridge/mifare"
	"github.com/dotside-studios/nfc-bridge/protocol"
)

// listTagsTimeout bounds how long a listTags request may hold its client
// waiting on discovery.
const listTagsTimeout = 5 * time.Second

// TagSource streams discovery results and device status changes into the
// server, typically from the agent's poll loop.
type TagSource interface {
	Tags() <-chan []mifare.Tag
	StatusUpdates() <-chan protocol.DeviceStatusPayload
}

// BridgeHandler routes tag command messages to the reader. It resolves
// client-supplied UIDs against the tag registry, runs each command as a
// connect/command/disconnect session on the device queue, and answers in
// wire form.
type BridgeHandler struct {
	device           *mifare.Device
	registry         *TagRegistry
	source           TagSource
	allowedCardTypes map[string]bool
}

// NewBridgeHandler creates a handler for the given device. source may be
// nil when nothing pushes discovery results; registry must not be.
func NewBridgeHandler(device *mifare.Device, registry *TagRegistry, source TagSource, allowedCardTypes map[string]bool) *BridgeHandler {
	return &BridgeHandler{
		device:           device,
		registry:         registry,
		source:           source,
		allowedCardTypes: allowedCardTypes,
	}
}

// Register implements ServerHandler interface.
// It sets up message handlers and lifecycle in one place.
func (h *BridgeHandler) Register(server HandlerServer) {
	server.Handle(protocol.WSTypeListTags, h.handleListTags)
	server.Handle(protocol.WSTypeReadPage, h.handleReadPage)
	server.Handle(protocol.WSTypeWritePage, h.handleWritePage)
	server.Handle(protocol.WSTypeFastRead, h.handleFastRead)
	server.Handle(protocol.WSTypeSubtype, h.handleSubtype)
	server.Handle(protocol.WSTypeReadBlock, h.handleReadBlock)
	server.Handle(protocol.WSTypeWriteBlock, h.handleWriteBlock)

	server.StartLifecycle(func(ctx context.Context) {
		if h.source == nil {
			return
		}
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case tags := <-h.source.Tags():
					h.registry.Update(h.filterTags(tags))
					server.BroadcastTagList(h.registry.Snapshot())
				case status := <-h.source.StatusUpdates():
					server.BroadcastDeviceStatus(status)
				}
			}
		}()
	})
}

// filterTags applies the card type filter. Tags of filtered types are
// released immediately since they never enter the registry.
func (h *BridgeHandler) filterTags(tags []mifare.Tag) []mifare.Tag {
	if len(h.allowedCardTypes) == 0 {
		return tags
	}

	allowed := make([]mifare.Tag, 0, len(tags))
	for _, tag := range tags {
		if h.allowedCardTypes[tag.Technology().String()] {
			allowed = append(allowed, tag)
			continue
		}
		log.Printf("Card type '%s' not in allowed list, ignoring tag %s", tag.Technology(), tag.UID())
		tag.Release()
	}
	return allowed
}

// lookupTag resolves a client-supplied UID against the registry. The
// returned code classifies a failure for the wire.
func (h *BridgeHandler) lookupTag(uid string) (mifare.Tag, string, error) {
	normalized, err := protocol.NormalizeUID(uid)
	if err != nil {
		return nil, "INVALID_UID", err
	}
	tag, ok := h.registry.Get(normalized)
	if !ok {
		return nil, "TAG_NOT_FOUND", fmt.Errorf("no tag with UID %s in the field", normalized)
	}
	return tag, "", nil
}

// withTagSession connects the tag if needed, runs fn, and disconnects
// again if the session opened the connection.
func withTagSession(tag mifare.Tag, fn func() error) error {
	if tag.State() == mifare.StateDisconnected {
		if _, err := tag.Connect().Result(); err != nil {
			return err
		}
		defer func() {
			if _, err := tag.Disconnect().Result(); err != nil {
				log.Printf("Failed to disconnect tag %s: %v", tag.UID(), err)
			}
		}()
	}
	return fn()
}

// handleListTags performs a live discovery and answers with the refreshed
// registry contents.
func (h *BridgeHandler) handleListTags(ctx context.Context, conn *websocket.Conn, req protocol.WebSocketRequest) error {
	fut := h.device.ListTags()

	waitCtx, cancel := context.WithTimeout(ctx, listTagsTimeout)
	defer cancel()

	tags, err := fut.Wait(waitCtx)
	if err != nil {
		if waitCtx.Err() != nil {
			// The command may still resolve later; its tags would be
			// orphaned without a keeper.
			go func() {
				if late, lateErr := fut.Result(); lateErr == nil {
					for _, tag := range late {
						tag.Release()
					}
				}
			}()
			return h.sendError(conn, req.ID, "TIMEOUT", "discovery did not finish in time")
		}
		return h.sendDomainError(conn, req.ID, err)
	}

	h.registry.Update(h.filterTags(tags))
	return h.sendResponse(conn, req.ID, protocol.WSTypeListTagsResponse, h.registry.Snapshot())
}

func (h *BridgeHandler) handleReadPage(ctx context.Context, conn *websocket.Conn, req protocol.WebSocketRequest) error {
	var readReq protocol.ReadPageRequest
	if err := decodePayload(req, &readReq); err != nil {
		return h.sendError(conn, req.ID, "INVALID_PAYLOAD", "Invalid readPage request payload")
	}

	tag, code, err := h.lookupTag(readReq.UID)
	if err != nil {
		return h.sendError(conn, req.ID, code, err.Error())
	}
	ul, ok := tag.(*mifare.UltralightTag)
	if !ok {
		return h.sendError(conn, req.ID, "WRONG_TECHNOLOGY", fmt.Sprintf("tag %s is %s, not an Ultralight family tag", tag.UID(), tag.Technology()))
	}

	var data []byte
	err = withTagSession(ul, func() error {
		var opErr error
		data, opErr = ul.ReadPage(readReq.Page).Result()
		return opErr
	})
	if err != nil {
		return h.sendDomainError(conn, req.ID, err)
	}

	return h.sendResponse(conn, req.ID, protocol.WSTypeReadPageResponse, protocol.ReadPageResponse{
		UID:  ul.UID(),
		Page: readReq.Page,
		Data: hex.EncodeToString(data),
	})
}

func (h *BridgeHandler) handleWritePage(ctx context.Context, conn *websocket.Conn, req protocol.WebSocketRequest) error {
	var writeReq protocol.WritePageRequest
	if err := decodePayload(req, &writeReq); err != nil {
		return h.sendError(conn, req.ID, "INVALID_PAYLOAD", "Invalid writePage request payload")
	}

	data, err := hex.DecodeString(writeReq.Data)
	if err != nil {
		return h.sendError(conn, req.ID, "INVALID_PAYLOAD", "Page data must be hex encoded")
	}
	if len(data) != mifare.PageSize {
		return h.sendError(conn, req.ID, "INVALID_PAYLOAD", fmt.Sprintf("Page data must be %d bytes, got %d", mifare.PageSize, len(data)))
	}

	tag, code, err := h.lookupTag(writeReq.UID)
	if err != nil {
		return h.sendError(conn, req.ID, code, err.Error())
	}
	ul, ok := tag.(*mifare.UltralightTag)
	if !ok {
		return h.sendError(conn, req.ID, "WRONG_TECHNOLOGY", fmt.Sprintf("tag %s is %s, not an Ultralight family tag", tag.UID(), tag.Technology()))
	}

	err = withTagSession(ul, func() error {
		_, opErr := ul.WritePage(writeReq.Page, data).Result()
		return opErr
	})
	if err != nil {
		return h.sendDomainError(conn, req.ID, err)
	}

	return h.sendResponse(conn, req.ID, protocol.WSTypeWritePageResponse, protocol.WritePageResponse{
		UID:  ul.UID(),
		Page: writeReq.Page,
	})
}

func (h *BridgeHandler) handleFastRead(ctx context.Context, conn *websocket.Conn, req protocol.WebSocketRequest) error {
	var fastReq protocol.FastReadRequest
	if err := decodePayload(req, &fastReq); err != nil {
		return h.sendError(conn, req.ID, "INVALID_PAYLOAD", "Invalid fastRead request payload")
	}

	tag, code, err := h.lookupTag(fastReq.UID)
	if err != nil {
		return h.sendError(conn, req.ID, code, err.Error())
	}
	ul, ok := tag.(*mifare.UltralightTag)
	if !ok {
		return h.sendError(conn, req.ID, "WRONG_TECHNOLOGY", fmt.Sprintf("tag %s is %s, not an Ultralight family tag", tag.UID(), tag.Technology()))
	}

	var data []byte
	err = withTagSession(ul, func() error {
		var opErr error
		data, opErr = ul.FastRead(fastReq.StartPage, fastReq.EndPage).Result()
		return opErr
	})
	if err != nil {
		return h.sendDomainError(conn, req.ID, err)
	}

	return h.sendResponse(conn, req.ID, protocol.WSTypeFastReadResponse, protocol.FastReadResponse{
		UID:       ul.UID(),
		StartPage: fastReq.StartPage,
		EndPage:   fastReq.EndPage,
		Data:      hex.EncodeToString(data),
	})
}

func (h *BridgeHandler) handleSubtype(ctx context.Context, conn *websocket.Conn, req protocol.WebSocketRequest) error {
	var subReq protocol.SubtypeRequest
	if err := decodePayload(req, &subReq); err != nil {
		return h.sendError(conn, req.ID, "INVALID_PAYLOAD", "Invalid subtype request payload")
	}

	tag, code, err := h.lookupTag(subReq.UID)
	if err != nil {
		return h.sendError(conn, req.ID, code, err.Error())
	}
	ul, ok := tag.(*mifare.UltralightTag)
	if !ok {
		return h.sendError(conn, req.ID, "WRONG_TECHNOLOGY", fmt.Sprintf("tag %s is %s, not an Ultralight family tag", tag.UID(), tag.Technology()))
	}

	subtype, err := ul.Subtype().Result()
	if err != nil {
		return h.sendDomainError(conn, req.ID, err)
	}

	return h.sendResponse(conn, req.ID, protocol.WSTypeSubtypeResponse, protocol.SubtypeResponse{
		UID:     ul.UID(),
		Subtype: subtype,
	})
}

func (h *BridgeHandler) handleReadBlock(ctx context.Context, conn *websocket.Conn, req protocol.WebSocketRequest) error {
	var readReq protocol.ReadBlockRequest
	if err := decodePayload(req, &readReq); err != nil {
		return h.sendError(conn, req.ID, "INVALID_PAYLOAD", "Invalid readBlock request payload")
	}

	key, keyType, err := parseClassicKey(readReq.Key, readReq.KeyType)
	if err != nil {
		return h.sendError(conn, req.ID, "INVALID_PAYLOAD", err.Error())
	}

	tag, code, err := h.lookupTag(readReq.UID)
	if err != nil {
		return h.sendError(conn, req.ID, code, err.Error())
	}
	classic, ok := tag.(*mifare.ClassicTag)
	if !ok {
		return h.sendError(conn, req.ID, "WRONG_TECHNOLOGY", fmt.Sprintf("tag %s is %s, not a MIFARE Classic tag", tag.UID(), tag.Technology()))
	}

	var data []byte
	err = withTagSession(classic, func() error {
		if _, authErr := classic.Authenticate(readReq.Sector, key, keyType).Result(); authErr != nil {
			return authErr
		}
		var opErr error
		data, opErr = classic.ReadBlock(readReq.Block).Result()
		return opErr
	})
	if err != nil {
		return h.sendDomainError(conn, req.ID, err)
	}

	return h.sendResponse(conn, req.ID, protocol.WSTypeReadBlockResponse, protocol.ReadBlockResponse{
		UID:   classic.UID(),
		Block: readReq.Block,
		Data:  hex.EncodeToString(data),
	})
}

func (h *BridgeHandler) handleWriteBlock(ctx context.Context, conn *websocket.Conn, req protocol.WebSocketRequest) error {
	var writeReq protocol.WriteBlockRequest
	if err := decodePayload(req, &writeReq); err != nil {
		return h.sendError(conn, req.ID, "INVALID_PAYLOAD", "Invalid writeBlock request payload")
	}

	data, err := hex.DecodeString(writeReq.Data)
	if err != nil {
		return h.sendError(conn, req.ID, "INVALID_PAYLOAD", "Block data must be hex encoded")
	}
	if len(data) != mifare.BlockSize {
		return h.sendError(conn, req.ID, "INVALID_PAYLOAD", fmt.Sprintf("Block data must be %d bytes, got %d", mifare.BlockSize, len(data)))
	}

	key, keyType, err := parseClassicKey(writeReq.Key, writeReq.KeyType)
	if err != nil {
		return h.sendError(conn, req.ID, "INVALID_PAYLOAD", err.Error())
	}

	tag, code, err := h.lookupTag(writeReq.UID)
	if err != nil {
		return h.sendError(conn, req.ID, code, err.Error())
	}
	classic, ok := tag.(*mifare.ClassicTag)
	if !ok {
		return h.sendError(conn, req.ID, "WRONG_TECHNOLOGY", fmt.Sprintf("tag %s is %s, not a MIFARE Classic tag", tag.UID(), tag.Technology()))
	}

	err = withTagSession(classic, func() error {
		if _, authErr := classic.Authenticate(writeReq.Sector, key, keyType).Result(); authErr != nil {
			return authErr
		}
		_, opErr := classic.WriteBlock(writeReq.Block, data).Result()
		return opErr
	})
	if err != nil {
		return h.sendDomainError(conn, req.ID, err)
	}

	return h.sendResponse(conn, req.ID, protocol.WSTypeWriteBlockResponse, protocol.WriteBlockResponse{
		UID:   classic.UID(),
		Block: writeReq.Block,
	})
}

// parseClassicKey decodes the optional key and key type fields of a
// Classic request. An empty key means the factory default; an empty key
// type means key A.
func parseClassicKey(keyHex, keyType string) ([6]byte, mifare.KeyType, error) {
	key := mifare.KeyDefault
	if keyHex != "" {
		raw, err := hex.DecodeString(keyHex)
		if err != nil {
			return key, 0, fmt.Errorf("key must be hex encoded")
		}
		if len(raw) != 6 {
			return key, 0, fmt.Errorf("key must be 6 bytes, got %d", len(raw))
		}
		copy(key[:], raw)
	}

	switch keyType {
	case "", "A", "a":
		return key, mifare.KeyTypeA, nil
	case "B", "b":
		return key, mifare.KeyTypeB, nil
	}
	return key, 0, fmt.Errorf("key type must be \"A\" or \"B\", got %q", keyType)
}

// decodePayload re-encodes the request's loose payload map into a typed
// request struct.
func decodePayload(req protocol.WebSocketRequest, v any) error {
	payloadBytes, err := json.Marshal(req.Payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(payloadBytes, v)
}

// sendResponse sends a success response to the WebSocket client.
func (h *BridgeHandler) sendResponse(conn *websocket.Conn, requestID string, responseType string, payload any) error {
	response := protocol.WebSocketResponse{
		ID:      requestID,
		Type:    responseType,
		Success: true,
		Payload: payload,
	}

	if err := conn.WriteJSON(response); err != nil {
		log.Printf("Failed to send %s response: %v", responseType, err)
		return err
	}
	return nil
}

// sendError sends an error response to the WebSocket client.
func (h *BridgeHandler) sendError(conn *websocket.Conn, requestID string, errorCode string, message string) error {
	response := protocol.WebSocketResponse{
		ID:      requestID,
		Type:    protocol.WSTypeError,
		Success: false,
		Error:   message,
		Payload: map[string]any{
			"code": errorCode,
		},
	}

	return conn.WriteJSON(response)
}

// sendDomainError reports a command failure using the error taxonomy's
// code name as the wire code.
func (h *BridgeHandler) sendDomainError(conn *websocket.Conn, requestID string, err error) error {
	log.Printf("Command failed: %v", err)
	return h.sendError(conn, requestID, mifare.GetErrorCode(err).String(), err.Error())
}
