package obs

import (
	"encoding/json"
	"fmt"
)

// OpCode identifies the kind of message carried in an envelope.
type OpCode int

// OBS WebSocket v5 opcodes used by the rotator.
const (
	OpHello           OpCode = 0
	OpIdentify        OpCode = 1
	OpIdentified      OpCode = 2
	OpEvent           OpCode = 5
	OpRequest         OpCode = 6
	OpRequestResponse OpCode = 7
)

// Protocol constants.
const (
	// RPCVersion is the only protocol revision the client negotiates.
	RPCVersion = 1

	// EventSubscriptions selects the General and Scenes event categories (5).
	EventSubscriptions = subscriptionGeneral | subscriptionScenes

	subscriptionGeneral = 1 << 0
	subscriptionScenes  = 1 << 2

	// requestResource is sent with every request for compatibility with
	// servers that route on it.
	requestResource = "ScenesService"
)

// Request and event type names.
const (
	RequestGetSceneList           = "GetSceneList"
	RequestSetCurrentProgramScene = "SetCurrentProgramScene"

	EventCurrentProgramSceneChanged = "CurrentProgramSceneChanged"
	EventSceneListChanged           = "SceneListChanged"
	EventSceneCreated               = "SceneCreated"
	EventSceneRemoved               = "SceneRemoved"
	EventSceneNameChanged           = "SceneNameChanged"
)

// envelope is the outer frame of every message on the wire.
type envelope struct {
	Op   OpCode          `json:"op"`
	Data json.RawMessage `json:"d"`
}

// Message is a decoded incoming message. The concrete type is one of
// Hello, Identified, Event or RequestResponse.
type Message interface {
	Op() OpCode
}

// AuthChallenge is the authentication block of a hello.
type AuthChallenge struct {
	Challenge string `json:"challenge"`
	Salt      string `json:"salt"`
}

// Hello opens the handshake. Authentication is nil when the server has no
// password set.
type Hello struct {
	OBSWebSocketVersion string         `json:"obsWebSocketVersion"`
	RPCVersion          int            `json:"rpcVersion"`
	Authentication      *AuthChallenge `json:"authentication,omitempty"`
}

// Identified acknowledges a successful identify.
type Identified struct {
	NegotiatedRPCVersion int `json:"negotiatedRpcVersion"`
}

// Event is a server-pushed notification.
type Event struct {
	Type   string          `json:"eventType"`
	Intent int             `json:"eventIntent"`
	Data   json.RawMessage `json:"eventData"`
}

// RequestStatus reports the outcome of a request.
type RequestStatus struct {
	Result  bool   `json:"result"`
	Code    int    `json:"code"`
	Comment string `json:"comment,omitempty"`
}

// RequestResponse answers a request, correlated by ID.
type RequestResponse struct {
	Type   string          `json:"requestType"`
	ID     string          `json:"requestId"`
	Status *RequestStatus  `json:"requestStatus,omitempty"`
	Data   json.RawMessage `json:"responseData"`
}

// Op implements Message.
func (Hello) Op() OpCode { return OpHello }

// Op implements Message.
func (Identified) Op() OpCode { return OpIdentified }

// Op implements Message.
func (Event) Op() OpCode { return OpEvent }

// Op implements Message.
func (RequestResponse) Op() OpCode { return OpRequestResponse }

// Succeeded reports whether the server accepted the request. A response
// without a status block is treated as success.
func (r RequestResponse) Succeeded() bool {
	return r.Status == nil || r.Status.Result
}

// Decode parses one incoming frame. Unknown opcodes and payloads that do not
// match their opcode return ErrProtocol.
func Decode(raw []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: envelope: %w", ErrProtocol, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		// Identified may legitimately carry an empty body.
		if env.Op == OpIdentified {
			return Identified{}, nil
		}
		return nil, fmt.Errorf("%w: op %d without payload", ErrProtocol, env.Op)
	}

	switch env.Op {
	case OpHello:
		var m Hello
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return nil, fmt.Errorf("%w: hello: %w", ErrProtocol, err)
		}
		if m.Authentication != nil && (m.Authentication.Challenge == "" || m.Authentication.Salt == "") {
			return nil, fmt.Errorf("%w: hello: incomplete authentication block", ErrProtocol)
		}
		return m, nil
	case OpIdentified:
		var m Identified
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return nil, fmt.Errorf("%w: identified: %w", ErrProtocol, err)
		}
		return m, nil
	case OpEvent:
		var m Event
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return nil, fmt.Errorf("%w: event: %w", ErrProtocol, err)
		}
		if m.Type == "" {
			return nil, fmt.Errorf("%w: event without eventType", ErrProtocol)
		}
		return m, nil
	case OpRequestResponse:
		var m RequestResponse
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return nil, fmt.Errorf("%w: response: %w", ErrProtocol, err)
		}
		if m.ID == "" {
			return nil, fmt.Errorf("%w: response without requestId", ErrProtocol)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: unsupported op %d", ErrProtocol, env.Op)
	}
}

// identifyPayload is the body of an op 1 message.
type identifyPayload struct {
	RPCVersion         int    `json:"rpcVersion"`
	Authentication     string `json:"authentication,omitempty"`
	EventSubscriptions int    `json:"eventSubscriptions"`
}

// requestPayload is the body of an op 6 message.
type requestPayload struct {
	Resource    string `json:"resource"`
	RequestType string `json:"requestType"`
	RequestData any    `json:"requestData,omitempty"`
	RequestID   string `json:"requestId"`
}

// outgoing is an envelope with a typed body, used for encoding.
type outgoing struct {
	Op   OpCode `json:"op"`
	Data any    `json:"d"`
}

// newIdentify builds the identify frame answering hello. The token is only
// computed when the server asked for authentication.
func newIdentify(hello Hello, password string) outgoing {
	p := identifyPayload{
		RPCVersion:         RPCVersion,
		EventSubscriptions: EventSubscriptions,
	}
	if hello.Authentication != nil {
		p.Authentication = ComputeAuthResponse(password, hello.Authentication.Challenge, hello.Authentication.Salt)
	}
	return outgoing{Op: OpIdentify, Data: p}
}

func newRequest(id, requestType string, data any) outgoing {
	return outgoing{Op: OpRequest, Data: requestPayload{
		Resource:    requestResource,
		RequestType: requestType,
		RequestData: data,
		RequestID:   id,
	}}
}

// sceneListData is the responseData of GetSceneList.
type sceneListData struct {
	CurrentProgramSceneName string `json:"currentProgramSceneName"`
	Scenes                  []struct {
		SceneName string `json:"sceneName"`
	} `json:"scenes"`
}

// decodeSceneList extracts scene names in the order the server sent them.
func decodeSceneList(data json.RawMessage) ([]string, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: scene list without responseData", ErrProtocol)
	}
	var d sceneListData
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, "", fmt.Errorf("%w: scene list: %w", ErrProtocol, err)
	}
	if d.Scenes == nil {
		return nil, "", fmt.Errorf("%w: scene list without scenes", ErrProtocol)
	}
	names := make([]string, 0, len(d.Scenes))
	for _, s := range d.Scenes {
		if s.SceneName == "" {
			return nil, "", fmt.Errorf("%w: scene without sceneName", ErrProtocol)
		}
		names = append(names, s.SceneName)
	}
	return names, d.CurrentProgramSceneName, nil
}

// SceneName returns eventData.sceneName, present on
// CurrentProgramSceneChanged and the scene lifecycle events.
func (e Event) SceneName() (string, error) {
	var d struct {
		SceneName string `json:"sceneName"`
	}
	if len(e.Data) == 0 {
		return "", fmt.Errorf("%w: %s without eventData", ErrProtocol, e.Type)
	}
	if err := json.Unmarshal(e.Data, &d); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrProtocol, e.Type, err)
	}
	if d.SceneName == "" {
		return "", fmt.Errorf("%w: %s without sceneName", ErrProtocol, e.Type)
	}
	return d.SceneName, nil
}

// changesSceneList reports whether an event means the cached listing is stale.
func changesSceneList(eventType string) bool {
	switch eventType {
	case EventSceneListChanged, EventSceneCreated, EventSceneRemoved, EventSceneNameChanged:
		return true
	}
	return false
}
