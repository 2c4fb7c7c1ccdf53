package commands

import (
	"fmt"
	"strings"

	"github.com/edgelink/edgenode/edge"
)

func parseConnectType(s string) (edge.ConnectType, error) {
	switch strings.ToLower(s) {
	case "tcp":
		return edge.TCP, nil
	case "mqtt":
		return edge.MQTT, nil
	case "hybrid":
		return edge.Hybrid, nil
	default:
		return 0, fmt.Errorf("unknown connect type %q (want tcp, mqtt, or hybrid)", s)
	}
}

func parseNodeType(s string) (edge.NodeType, error) {
	switch strings.ToLower(s) {
	case "query-client", "client":
		return edge.QueryClient, nil
	case "query-server", "server":
		return edge.QueryServer, nil
	case "pub":
		return edge.Pub, nil
	case "sub":
		return edge.Sub, nil
	default:
		return 0, fmt.Errorf("unknown node type %q (want query-client, query-server, pub, or sub)", s)
	}
}
