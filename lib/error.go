package lib

import (
	"errors"
	"fmt"
	"math"
)

type ErrorI interface {
	Code() ErrorCode     // Returns the error code
	Module() ErrorModule // Returns the error module
	error                // Implements the built-in error interface
}

var _ ErrorI = &Error{} // Ensures *Error implements ErrorI

type ErrorCode uint32 // Defines a type for error codes

type ErrorModule string // Defines a type for error modules

type Error struct {
	ECode   ErrorCode   `json:"code"`   // Error code
	EModule ErrorModule `json:"module"` // Error module
	Msg     string      `json:"msg"`    // Error message
}

func NewError(code ErrorCode, module ErrorModule, msg string) *Error {
	// Constructs a new Error instance
	return &Error{ECode: code, EModule: module, Msg: msg}
}

// Code() returns the associated error code
func (p *Error) Code() ErrorCode { return p.ECode }

// Module() returns module field
func (p *Error) Module() ErrorModule { return p.EModule }

// String() calls Error()
func (p *Error) String() string { return p.Error() }

// Error() returns a formatted string including module, code and message
func (p *Error) Error() string {
	return fmt.Sprintf("\nModule:  %s\nCode:    %d\nMessage: %s", p.EModule, p.ECode, p.Msg)
}

// IsCode() reports whether err is an ErrorI from module with the given code
func IsCode(err error, module ErrorModule, code ErrorCode) bool {
	var e ErrorI
	if !errors.As(err, &e) {
		return false
	}
	return e.Module() == module && e.Code() == code
}

const (
	NoCode ErrorCode = math.MaxUint32

	// Main Module
	MainModule ErrorModule = "main"

	// Main Module Error Codes
	CodeJSONMarshal       ErrorCode = 1
	CodeJSONUnmarshal     ErrorCode = 2
	CodeNilBlock          ErrorCode = 3
	CodeInvalidBlockHash  ErrorCode = 4
	CodeWriteFile         ErrorCode = 5
	CodeReadFile          ErrorCode = 6
	CodeInvalidArgument   ErrorCode = 7
	CodeInvalidPeerConfig ErrorCode = 8
	CodeEmptyTransactions ErrorCode = 9

	// Consensus Module
	ConsensusModule ErrorModule = "consensus"

	// Consensus Module Error Codes
	CodeMessageDecode         ErrorCode = 1
	CodeUnknownMessageType    ErrorCode = 2
	CodeWrongView             ErrorCode = 3
	CodeNotPrimary            ErrorCode = 4
	CodeEmptyBlock            ErrorCode = 5
	CodeBlockAlreadyCommitted ErrorCode = 6
	CodeMismatchMessageType   ErrorCode = 7

	// Storage Module
	StorageModule ErrorModule = "store"

	// Storage Module Error Codes
	CodeChainLinkage       ErrorCode = 1
	CodeEmptyChain         ErrorCode = 2
	CodeInvalidGenesis     ErrorCode = 3
	CodeBlockNotFound      ErrorCode = 4
	CodeCorruptedChainData ErrorCode = 5

	// P2P Module
	P2PModule ErrorModule = "p2p"

	// P2P Module Error Codes
	CodeBroadcast      ErrorCode = 1
	CodeUnknownPeer    ErrorCode = 2
	CodePublisherStart ErrorCode = 3
	CodePublish        ErrorCode = 4

	// RPC Module
	RPCModule ErrorModule = "rpc"

	// RPC Module Error Codes
	CodeRPCTimeout  ErrorCode = 1
	CodePostRequest ErrorCode = 2
	CodeGetRequest  ErrorCode = 3
	CodeHttpStatus  ErrorCode = 4
	CodeReadBody    ErrorCode = 5
	CodeMissingVote ErrorCode = 6
)

func ErrJSONUnmarshal(err error) ErrorI {
	return NewError(CodeJSONUnmarshal, MainModule, fmt.Sprintf("json.unmarshal() failed with err: %s", err.Error()))
}

func ErrJSONMarshal(err error) ErrorI {
	return NewError(CodeJSONMarshal, MainModule, fmt.Sprintf("json.marshal() failed with err: %s", err.Error()))
}

func ErrNilBlock() ErrorI {
	return NewError(CodeNilBlock, MainModule, "block is nil")
}

func ErrInvalidBlockHash(expected, got string) ErrorI {
	return NewError(CodeInvalidBlockHash, MainModule, fmt.Sprintf("invalid block hash: expected %s, got %s", expected, got))
}

func ErrEmptyTransactions() ErrorI {
	return NewError(CodeEmptyTransactions, MainModule, "only the genesis block may have no transactions")
}

func ErrWriteFile(err error) ErrorI {
	return NewError(CodeWriteFile, MainModule, fmt.Sprintf("os.WriteFile() failed with err: %s", err.Error()))
}

func ErrReadFile(err error) ErrorI {
	return NewError(CodeReadFile, MainModule, fmt.Sprintf("os.ReadFile() failed with err: %s", err.Error()))
}

func ErrInvalidArgument() ErrorI {
	return NewError(CodeInvalidArgument, MainModule, "the argument is invalid")
}

func ErrInvalidPeerConfig(s string) ErrorI {
	return NewError(CodeInvalidPeerConfig, MainModule, fmt.Sprintf("invalid peer entry %q, expected id=url", s))
}

func ErrServerTimeout() ErrorI {
	return NewError(CodeRPCTimeout, RPCModule, "server timeout")
}

func ErrPostRequest(err error) ErrorI {
	return NewError(CodePostRequest, RPCModule, fmt.Sprintf("http.Post() failed with err: %s", err.Error()))
}

func ErrGetRequest(err error) ErrorI {
	return NewError(CodeGetRequest, RPCModule, fmt.Sprintf("http.Get() failed with err: %s", err.Error()))
}

func ErrHttpStatus(status string, statusCode int, body []byte) ErrorI {
	return NewError(CodeHttpStatus, RPCModule, fmt.Sprintf("http response bad status %s with code %d and body %s", status, statusCode, body))
}

func ErrReadBody(err error) ErrorI {
	return NewError(CodeReadBody, RPCModule, fmt.Sprintf("io.ReadAll(http.ResponseBody) failed with err: %s", err.Error()))
}

func ErrMissingVoteValues() ErrorI {
	return NewError(CodeMissingVote, RPCModule, "Missing values")
}
