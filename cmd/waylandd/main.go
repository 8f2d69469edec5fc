/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Command waylandd is a minimal display server: it wires the config,
// logging, dispatcher, display/registry and socket-management layers
// together and advertises two built-in globals (wl_compositor, wl_shm)
// purely to exercise bind end to end.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nabbar/wlserver/ioutils/fileDescriptor"
	"github.com/nabbar/wlserver/scanner/model"
	"github.com/nabbar/wlserver/wire/codec"
	"github.com/nabbar/wlserver/wlconfig"
	"github.com/nabbar/wlserver/wllog"
	"github.com/nabbar/wlserver/wlserver"
)

// minFileDescriptors is raised at startup so one process can accept many
// concurrent client connections (plus the fd-passing traffic each one may
// carry) without running into the default per-process open-file cap.
const minFileDescriptors = 4096

func compositorInterfaceModel() *model.Interface {
	return &model.Interface{
		Name:    "wl_compositor",
		Version: 1,
		Requests: []model.Message{
			{Name: "create_surface", Opcode: 0, Since: 1, Args: []model.Argument{{Name: "id", Kind: model.ArgNewID, Interface: "wl_surface"}}},
			{Name: "create_region", Opcode: 1, Since: 1, Args: []model.Argument{{Name: "id", Kind: model.ArgNewID, Interface: "wl_region"}}},
		},
	}
}

func surfaceInterfaceModel() *model.Interface {
	return &model.Interface{
		Name:    "wl_surface",
		Version: 1,
		Requests: []model.Message{
			{Name: "destroy", Opcode: 0, Since: 1, Destructor: true},
		},
	}
}

func regionInterfaceModel() *model.Interface {
	return &model.Interface{
		Name:    "wl_region",
		Version: 1,
		Requests: []model.Message{
			{Name: "destroy", Opcode: 0, Since: 1, Destructor: true},
		},
	}
}

func shmPoolInterfaceModel() *model.Interface {
	return &model.Interface{
		Name:    "wl_shm_pool",
		Version: 1,
		Requests: []model.Message{
			{Name: "destroy", Opcode: 0, Since: 1, Destructor: true},
		},
	}
}

func shmInterfaceModel() *model.Interface {
	return &model.Interface{
		Name:    "wl_shm",
		Version: 1,
		Requests: []model.Message{
			{Name: "create_pool", Opcode: 0, Since: 1, Args: []model.Argument{
				{Name: "id", Kind: model.ArgNewID, Interface: "wl_shm_pool"},
				{Name: "fd", Kind: model.ArgFD},
				{Name: "size", Kind: model.ArgInt},
			}},
		},
	}
}

// destroyOnlyDispatcher answers every opcode of a destroy-only interface
// (surface, region, shm_pool) by destroying the resource; none of them
// carry any other request in this minimal binary.
func destroyOnlyDispatcher(r *wlserver.Resource, opcode uint16, args []codec.ArgValue) error {
	r.Destroy()
	return nil
}

// bindChildFactory builds a BindFunc that installs a Resource at the
// client's requested id, answering every request with destroyOnlyDispatcher.
func bindChildFactory(iface *model.Interface) wlserver.BindFunc {
	return func(client *wlserver.Client, data interface{}, version uint32, id uint32) error {
		r := wlserver.NewResource(client, id, iface, version)
		r.SetDispatcher(destroyOnlyDispatcher, nil)
		if !client.Objects.InsertAt(id, 0, r) {
			return fmt.Errorf("id %d in use", id)
		}
		return nil
	}
}

// bindCompositor answers wl_compositor's two requests by handing out
// wl_surface/wl_region child resources.
func bindCompositor(surfaceIface, regionIface *model.Interface) wlserver.BindFunc {
	return func(client *wlserver.Client, data interface{}, version uint32, id uint32) error {
		r := wlserver.NewResource(client, id, compositorInterfaceModel(), version)
		r.SetDispatcher(func(res *wlserver.Resource, opcode uint16, args []codec.ArgValue) error {
			if len(args) != 1 {
				return fmt.Errorf("wl_compositor: bad argument count")
			}
			switch opcode {
			case 0: // create_surface
				child := wlserver.NewResource(client, args[0].NewID, surfaceIface, version)
				child.SetDispatcher(destroyOnlyDispatcher, nil)
				if !client.Objects.InsertAt(args[0].NewID, 0, child) {
					return fmt.Errorf("wl_compositor: id %d in use", args[0].NewID)
				}
				return nil
			case 1: // create_region
				child := wlserver.NewResource(client, args[0].NewID, regionIface, version)
				child.SetDispatcher(destroyOnlyDispatcher, nil)
				if !client.Objects.InsertAt(args[0].NewID, 0, child) {
					return fmt.Errorf("wl_compositor: id %d in use", args[0].NewID)
				}
				return nil
			default:
				return fmt.Errorf("wl_compositor: unknown opcode %d", opcode)
			}
		}, nil)
		if !client.Objects.InsertAt(id, 0, r) {
			return fmt.Errorf("id %d in use", id)
		}
		return nil
	}
}

func main() {
	cfg := wlconfig.New()
	vpr := viper.New()

	root := &cobra.Command{
		Use:           "waylandd",
		Short:         "Minimal display server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg, vpr)
		},
	}

	if err := cfg.RegisterFlag(root, vpr); err != nil {
		fmt.Fprintln(os.Stderr, "waylandd:", err)
		os.Exit(1)
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "waylandd:", err)
		os.Exit(1)
	}
}

func run(cfgComponent wlconfig.Component, vpr *viper.Viper) error {
	conf, err := cfgComponent.Init(vpr)
	if err != nil {
		return err
	}

	log := wllog.New()
	if conf.Debug {
		log.SetLevel(logrus.DebugLevel)
	}

	if cur, max, fdErr := fileDescriptor.SystemFileDescriptor(minFileDescriptors); fdErr != nil {
		log.Warnf("could not raise file descriptor limit: %v", fdErr)
	} else {
		log.Infof("file descriptor limit: %d (hard %d)", cur, max)
	}

	disp := wlserver.NewDisplay(log)
	disp.Debug = conf.Debug

	reactor := wlserver.NewReactor()
	disp.OnClientAccepted(func(c *wlserver.Client) {
		fd := c.Fd()
		if fd < 0 {
			return
		}
		reactor.Watch(fd, wlserver.ReactorCallbacks{
			Readable: c.OnReadable,
			Writable: c.OnWritable,
			Error:    c.OnHangupOrError,
			Hangup:   c.OnHangupOrError,
		})
		c.AddDestroyListener(func() { reactor.Unwatch(fd) })
		log.Infof("client connected: pid=%d uid=%d", c.Credentials.PID, c.Credentials.UID)
	})

	name, err := disp.AddSocket(conf.RuntimeDir, conf.DisplayName)
	if err != nil {
		return fmt.Errorf("waylandd: listen: %w", err)
	}
	log.Infof("listening on %s/%s", conf.RuntimeDir, name)

	registerBuiltinGlobals(disp)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		reactor.Stop()
		disp.CloseSocket()
	}()

	return reactor.Run(1000)
}

func registerBuiltinGlobals(disp *wlserver.Display) {
	surfaceIface := surfaceInterfaceModel()
	regionIface := regionInterfaceModel()
	shmPoolIface := shmPoolInterfaceModel()

	disp.GlobalCreate("wl_compositor", 1, nil, bindCompositor(surfaceIface, regionIface))
	disp.GlobalCreate("wl_shm", 1, nil, bindChildFactory(shmPoolIface))
}

var _ = shmInterfaceModel
