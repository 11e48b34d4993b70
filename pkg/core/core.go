// Package core - media kinds, codecs and SDP shared by the receiver and the sender
package core

const (
	DirectionRecvonly = "recvonly"
	DirectionSendonly = "sendonly"
	DirectionSendRecv = "sendrecv"
)

const (
	KindVideo = "video"
	KindAudio = "audio"
)

const (
	CodecH264 = "H264"
	CodecOpus = "OPUS"
)

// RTP profiles for SDP media lines, SAVPF when SRTP key is set
const (
	ProtoAVPF  = "AVPF"
	ProtoSAVPF = "SAVPF"
)

// CryptoSuite - the only SRTP suite both sides know
const CryptoSuite = "AES_CM_128_HMAC_SHA1_80"
