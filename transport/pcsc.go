package transport

import (
	"github.com/ebfe/scard"
	"github.com/pkg/errors"
)

// PCSCTransmitter is a Transmitter over a connected PC/SC card handle. It
// is the one concrete, real-hardware Transmitter this module ships; every
// other Channel/Transmitter in the tests is a script or a fake.
type PCSCTransmitter struct {
	card *scard.Card
}

// ConnectPCSC establishes a PC/SC context, connects to the named reader,
// and returns a Transmitter plus a close function that disconnects the
// card and releases the context. It always connects with the ShareMode/
// Protocol defaults every reference binding in this module's corpus uses:
// shared access, any protocol.
func ConnectPCSC(reader string) (*PCSCTransmitter, func() error, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, nil, errors.Wrap(err, "establish PC/SC context")
	}

	card, err := ctx.Connect(reader, scard.ShareShared, scard.ProtocolAny)
	if err != nil {
		_ = ctx.Release()
		return nil, nil, errors.Wrapf(err, "connect to reader %q", reader)
	}

	t := &PCSCTransmitter{card: card}

	closeFn := func() error {
		if err := card.Disconnect(scard.LeaveCard); err != nil {
			return err
		}
		return ctx.Release()
	}

	return t, closeFn, nil
}

// ListReaders enumerates the PC/SC readers currently visible to the
// system, for callers that need to pick one interactively before calling
// ConnectPCSC.
func ListReaders() ([]string, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, errors.Wrap(err, "establish PC/SC context")
	}
	defer ctx.Release()

	return ctx.ListReaders()
}

// Transmit sends command and returns the card's raw response, MAC/RMAC
// wrapping already applied by the caller's Channel — this layer knows
// nothing about GlobalPlatform, only about moving bytes to a card.
func (t *PCSCTransmitter) Transmit(command []byte) ([]byte, error) {
	resp, err := t.card.Transmit(command)
	if err != nil {
		return nil, errors.Wrap(err, "pcsc transmit")
	}

	return resp, nil
}
