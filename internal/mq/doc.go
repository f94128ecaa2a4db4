// Package mq carries render jobs over RabbitMQ.
//
// Topology:
//
//	concept2video (direct)
//	├── <queue>            [routing: pending]    job requests, dead-lettered to dlq
//	└── <queue>.completed  [routing: completed]  job outcomes
//
//	concept2video.dlq (direct)
//	└── <queue>.dlq        [routing: jobs]       rejected requests
package mq
