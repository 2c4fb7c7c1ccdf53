package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/edgelink/edgenode/edge"
	"github.com/edgelink/edgenode/edgedata"
)

var (
	serveConnectType string
	serveNodeType    string
	serveHost        string
	servePort        int
	serveTopic       string
	serveBrokerHost  string
	serveBrokerPort  int
	serveID          string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a server-role node and log every frame it receives",
	RunE: func(cmd *cobra.Command, args []string) error {
		connectType, err := parseConnectType(serveConnectType)
		if err != nil {
			return err
		}
		nodeType, err := parseNodeType(serveNodeType)
		if err != nil {
			return err
		}

		n, err := edge.New(serveID, connectType, nodeType, nil)
		if err != nil {
			return err
		}
		n.SetLogger(edge.NewLogger("serve"))
		if err := n.SetInfo("HOST", serveHost); err != nil {
			return err
		}
		if err := n.SetInfo("PORT", strconv.Itoa(servePort)); err != nil {
			return err
		}
		if serveTopic != "" {
			if err := n.SetInfo("TOPIC", serveTopic); err != nil {
				return err
			}
		}
		if serveBrokerHost != "" {
			if err := n.SetInfo("DEST_HOST", serveBrokerHost); err != nil {
				return err
			}
			if err := n.SetInfo("DEST_PORT", strconv.Itoa(serveBrokerPort)); err != nil {
				return err
			}
		}

		n.SetEventCallback(func(node *edge.Node, ev edge.Event, data *edgedata.Data, caps []byte, userData any) error {
			switch ev {
			case edge.EventNewDataReceived:
				for i := 0; i < data.NumSlots(); i++ {
					slot, _ := data.Get(i)
					fmt.Println(styledLabel(fmt.Sprintf("slot %d", i), fmt.Sprintf("%q", slot)))
				}
			case edge.EventConnectionCompleted:
				fmt.Println(labelStyle.Render("peer connected"))
			case edge.EventConnectionClosed:
				fmt.Println(dimStyle.Render("peer disconnected"))
			case edge.EventConnectionFailure:
				fmt.Println(errorStyle.Render("connection failed"))
			}
			return nil
		}, nil)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := n.Start(ctx); err != nil {
			return err
		}
		defer n.Release()

		addr, _ := n.GetInfo("HOST")
		port, _ := n.GetInfo("PORT")
		fmt.Println(styledLabel("listening", fmt.Sprintf("%s:%s (connect-type=%s)", addr, port, connectType)))

		<-ctx.Done()
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveConnectType, "connect-type", "tcp", "tcp, mqtt, or hybrid")
	serveCmd.Flags().StringVar(&serveNodeType, "node-type", "query-server", "query-server, query-client, pub, or sub")
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "listen host")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (0 picks an ephemeral port)")
	serveCmd.Flags().StringVar(&serveTopic, "topic", "", "mqtt/hybrid topic")
	serveCmd.Flags().StringVar(&serveBrokerHost, "broker-host", "", "mqtt broker host (mqtt/hybrid)")
	serveCmd.Flags().IntVar(&serveBrokerPort, "broker-port", 1883, "mqtt broker port (mqtt/hybrid)")
	serveCmd.Flags().StringVar(&serveID, "id", "edgenodectl-server", "node id")
	rootCmd.AddCommand(serveCmd)
}
