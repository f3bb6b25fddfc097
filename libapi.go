package busbridge

import (
	bridgepkg "github.com/voyahub/busbridge/internal/bridge"
	errspkg "github.com/voyahub/busbridge/internal/bridge/errors"
	buspkg "github.com/voyahub/busbridge/internal/bus"
	configpkg "github.com/voyahub/busbridge/internal/config"
	"github.com/voyahub/busbridge/internal/httpapi"
	idspkg "github.com/voyahub/busbridge/internal/ids"
	"github.com/voyahub/busbridge/internal/jsoncodec"
	loggingpkg "github.com/voyahub/busbridge/internal/logging"
	metadatapkg "github.com/voyahub/busbridge/internal/metadata"
	transportpkg "github.com/voyahub/busbridge/transport"
)

type (
	Config = configpkg.Config

	Service        = bridgepkg.Service
	SendRequest    = bridgepkg.SendRequest
	Outcome        = bridgepkg.Outcome
	OutcomeKind    = bridgepkg.OutcomeKind
	HealthSnapshot = bridgepkg.HealthSnapshot
	Metrics        = bridgepkg.Metrics

	// Bus is the connection contract the Service runs on; BusClient is the
	// reconnecting implementation backed by the transport registry.
	Bus           = bridgepkg.Bus
	BusClient     = buspkg.Client
	StateListener = buspkg.StateListener

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	Metadata = metadatapkg.Metadata

	// HTTP surface, for hosts that mount the bridge API themselves.
	HTTPHandlers = httpapi.Handlers
	HTTPServer   = httpapi.Server

	// Transport plumbing for custom brokers.
	Transport             = transportpkg.Transport
	TransportBuilder      = transportpkg.Builder
	TransportConfig       = transportpkg.Config
	TransportRegistry     = transportpkg.Registry
	TransportCapabilities = transportpkg.Capabilities
)

// Outcome kinds and failure reasons.
const (
	OutcomeOK        = bridgepkg.OutcomeOK
	OutcomeTimeout   = bridgepkg.OutcomeTimeout
	OutcomeCancelled = bridgepkg.OutcomeCancelled
	OutcomeFailed    = bridgepkg.OutcomeFailed

	ReasonPublishFailed  = bridgepkg.ReasonPublishFailed
	ReasonBusUnavailable = bridgepkg.ReasonBusUnavailable
)

// Metadata keys stamped on every request message.
const (
	MetadataKeyCorrelationID = metadatapkg.KeyCorrelationID
	MetadataKeyReplyTo       = metadatapkg.KeyReplyTo
	MetadataKeySentAt        = metadatapkg.KeySentAt
)

var (
	NewService   = bridgepkg.NewService
	NewBusClient = buspkg.NewClient

	LoadConfig     = configpkg.Load
	LoadConfigFile = configpkg.LoadFile
	ValidateConfig = configpkg.ValidateConfig

	NewHTTPHandlers = httpapi.NewHandlers
	NewHTTPRouter   = httpapi.NewRouter
	NewHTTPServer   = httpapi.NewServer

	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger
	NopLogger            = loggingpkg.Nop
	NewWatermillAdapter  = loggingpkg.NewWatermillAdapter

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	NewMetadata     = metadatapkg.New
	RequestMetadata = metadatapkg.ForRequest
	StampMetadata   = metadatapkg.Stamp

	CreateULID = idspkg.CreateULID

	// Transport registry helpers. Bundled transports are imported via
	// their packages, for example:
	//   _ "github.com/voyahub/busbridge/transport/kafka"
	DefaultTransportRegistry = transportpkg.DefaultRegistry
	RegisterTransport        = transportpkg.Register
	BuildTransport           = transportpkg.Build
	GetCapabilities          = transportpkg.GetCapabilities

	ErrInvalidRequest         = errspkg.ErrInvalidRequest
	ErrBridgeUnavailable      = errspkg.ErrBridgeUnavailable
	ErrDuplicateCorrelationID = errspkg.ErrDuplicateCorrelationID
	ErrConfigRequired         = errspkg.ErrConfigRequired
	ErrLoggerRequired         = errspkg.ErrLoggerRequired
	ErrBusRequired            = errspkg.ErrBusRequired
	ErrNotConnected           = buspkg.ErrNotConnected

	IsConnectionError = buspkg.IsConnectionError
)
