package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/edgelink/edgenode/edge"
	"github.com/edgelink/edgenode/edgedata"
)

var (
	sendConnectType string
	sendNodeType    string
	sendDestHost    string
	sendDestPort    int
	sendTopic       string
	sendPayload     string
	sendID          string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Connect a client-role node and send one payload",
	RunE: func(cmd *cobra.Command, args []string) error {
		connectType, err := parseConnectType(sendConnectType)
		if err != nil {
			return err
		}
		nodeType, err := parseNodeType(sendNodeType)
		if err != nil {
			return err
		}

		n, err := edge.New(sendID, connectType, nodeType, nil)
		if err != nil {
			return err
		}
		n.SetLogger(edge.NewLogger("send"))
		n.SetInfo("HOST", "127.0.0.1")
		n.SetInfo("PORT", "0")
		if sendTopic != "" {
			n.SetInfo("TOPIC", sendTopic)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := n.Start(ctx); err != nil {
			return err
		}
		defer n.Release()

		if err := n.Connect(ctx, sendDestHost, sendDestPort); err != nil {
			return err
		}

		data := edgedata.New()
		if err := data.Add([]byte(sendPayload)); err != nil {
			return err
		}
		if err := n.Send(data); err != nil {
			return err
		}

		fmt.Println(styledLabel("sent", fmt.Sprintf("%q to %s:%d", sendPayload, sendDestHost, sendDestPort)))
		return nil
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendConnectType, "connect-type", "tcp", "tcp, mqtt, or hybrid")
	sendCmd.Flags().StringVar(&sendNodeType, "node-type", "query-client", "query-server, query-client, pub, or sub")
	sendCmd.Flags().StringVar(&sendDestHost, "dest-host", "127.0.0.1", "peer/broker host")
	sendCmd.Flags().IntVar(&sendDestPort, "dest-port", 0, "peer/broker port")
	sendCmd.Flags().StringVar(&sendTopic, "topic", "", "mqtt/hybrid topic")
	sendCmd.Flags().StringVar(&sendPayload, "payload", "hello", "payload to send")
	sendCmd.Flags().StringVar(&sendID, "id", "edgenodectl-client", "node id")
	rootCmd.AddCommand(sendCmd)
}
