// Festwire - Festival Box Office Client/Server Synchronization
// Copyright 2026 Festwire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/festwire/festwire

package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/festwire/festwire/internal/logging"
	"github.com/festwire/festwire/internal/models"
)

// Key prefixes for BadgerDB storage. Entity keys embed a zero-padded id
// so prefix iteration yields insertion order; *_name keys are secondary
// indexes mapping a unique name to the owning id.
const (
	prefixShow         = "show:"
	prefixTicket       = "ticket:"
	prefixClient       = "client:"
	prefixEmployee     = "employee:"
	prefixClientName   = "client_name:"
	prefixEmployeeName = "employee_name:"
)

// sequenceBandwidth is how many ids each sequence leases at a time.
const sequenceBandwidth = 64

// BadgerStore implements Store on an embedded BadgerDB, suitable for the
// server binary with persistence across restarts.
type BadgerStore struct {
	db *badger.DB

	showSeq     *badger.Sequence
	ticketSeq   *badger.Sequence
	clientSeq   *badger.Sequence
	employeeSeq *badger.Sequence
}

// OpenBadger opens (or creates) a BadgerDB-backed store at path.
func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	s := &BadgerStore{db: db}
	for _, seq := range []struct {
		key  string
		dest **badger.Sequence
	}{
		{"seq:show", &s.showSeq},
		{"seq:ticket", &s.ticketSeq},
		{"seq:client", &s.clientSeq},
		{"seq:employee", &s.employeeSeq},
	} {
		sq, err := db.GetSequence([]byte(seq.key), sequenceBandwidth)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("open sequence %s: %w", seq.key, err)
		}
		*seq.dest = sq
	}

	logging.Info().Str("path", path).Msg("badger store opened")
	return s, nil
}

// Close releases id sequences and closes the database.
func (s *BadgerStore) Close() error {
	for _, seq := range []*badger.Sequence{s.showSeq, s.ticketSeq, s.clientSeq, s.employeeSeq} {
		if seq != nil {
			_ = seq.Release()
		}
	}
	return s.db.Close()
}

func nextID(seq *badger.Sequence) (int64, error) {
	n, err := seq.Next()
	if err != nil {
		return 0, fmt.Errorf("next id: %w", err)
	}
	// Sequences start at 0; entity ids start at 1.
	return int64(n) + 1, nil
}

func entityKey(prefix string, id int64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefix, id))
}

// getJSON fetches and unmarshals one entity inside a view transaction.
func (s *BadgerStore) getJSON(key []byte, v interface{}) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get %s: %w", key, err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
}

// setJSON marshals and stores one entity in its own transaction.
func (s *BadgerStore) setJSON(key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

// listJSON collects every value under prefix, unmarshaling each through
// decode into the caller's slice.
func (s *BadgerStore) listJSON(prefix string, decode func([]byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix([]byte(prefix)); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				return decode(val)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// ShowByID returns the show with the given id.
func (s *BadgerStore) ShowByID(_ context.Context, id int64) (models.Show, error) {
	var show models.Show
	err := s.getJSON(entityKey(prefixShow, id), &show)
	return show, err
}

// Shows returns all shows in id order.
func (s *BadgerStore) Shows(_ context.Context) ([]models.Show, error) {
	shows := []models.Show{}
	err := s.listJSON(prefixShow, func(val []byte) error {
		var show models.Show
		if err := json.Unmarshal(val, &show); err != nil {
			return err
		}
		shows = append(shows, show)
		return nil
	})
	return shows, err
}

// SaveShow assigns a fresh id and stores the show.
func (s *BadgerStore) SaveShow(_ context.Context, show *models.Show) error {
	id, err := nextID(s.showSeq)
	if err != nil {
		return err
	}
	show.ID = id
	return s.setJSON(entityKey(prefixShow, id), show)
}

// UpdateShow replaces an existing show record.
func (s *BadgerStore) UpdateShow(_ context.Context, show models.Show) error {
	key := entityKey(prefixShow, show.ID)
	data, err := json.Marshal(show)
	if err != nil {
		return fmt.Errorf("marshal show: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
}

// DeleteShow removes a show record.
func (s *BadgerStore) DeleteShow(_ context.Context, id int64) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(entityKey(prefixShow, id))
	})
}

// ShowsByArtistAndTime returns shows matching the artist and time search
// terms (case-insensitive substring; empty term matches all).
func (s *BadgerStore) ShowsByArtistAndTime(ctx context.Context, artist, timeOfDay string) ([]models.Show, error) {
	all, err := s.Shows(ctx)
	if err != nil {
		return nil, err
	}
	matched := []models.Show{}
	for _, show := range all {
		if matchShow(show, artist, timeOfDay) {
			matched = append(matched, show)
		}
	}
	return matched, nil
}

// TicketByID returns the ticket with the given id.
func (s *BadgerStore) TicketByID(_ context.Context, id int64) (models.Ticket, error) {
	var ticket models.Ticket
	err := s.getJSON(entityKey(prefixTicket, id), &ticket)
	return ticket, err
}

// Tickets returns all tickets in id order.
func (s *BadgerStore) Tickets(_ context.Context) ([]models.Ticket, error) {
	tickets := []models.Ticket{}
	err := s.listJSON(prefixTicket, func(val []byte) error {
		var ticket models.Ticket
		if err := json.Unmarshal(val, &ticket); err != nil {
			return err
		}
		tickets = append(tickets, ticket)
		return nil
	})
	return tickets, err
}

// SaveTicket assigns a fresh id and stores the ticket.
func (s *BadgerStore) SaveTicket(_ context.Context, ticket *models.Ticket) error {
	id, err := nextID(s.ticketSeq)
	if err != nil {
		return err
	}
	ticket.ID = id
	return s.setJSON(entityKey(prefixTicket, id), ticket)
}

// DeleteTicket removes a ticket record.
func (s *BadgerStore) DeleteTicket(_ context.Context, id int64) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(entityKey(prefixTicket, id))
	})
}

// ClientByID returns the client with the given id.
func (s *BadgerStore) ClientByID(_ context.Context, id int64) (models.Client, error) {
	var client models.Client
	err := s.getJSON(entityKey(prefixClient, id), &client)
	return client, err
}

// Clients returns all clients in id order.
func (s *BadgerStore) Clients(_ context.Context) ([]models.Client, error) {
	clients := []models.Client{}
	err := s.listJSON(prefixClient, func(val []byte) error {
		var client models.Client
		if err := json.Unmarshal(val, &client); err != nil {
			return err
		}
		clients = append(clients, client)
		return nil
	})
	return clients, err
}

func clientNameKey(name string) []byte {
	return []byte(prefixClientName + strings.ToLower(name))
}

// SaveClient assigns a fresh id and stores the client together with its
// name index entry. A client with the same name already present is
// ErrDuplicate.
func (s *BadgerStore) SaveClient(_ context.Context, client *models.Client) error {
	id, err := nextID(s.clientSeq)
	if err != nil {
		return err
	}
	client.ID = id
	data, err := json.Marshal(client)
	if err != nil {
		return fmt.Errorf("marshal client: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		nameKey := clientNameKey(client.Name)
		if _, err := txn.Get(nameKey); err == nil {
			return fmt.Errorf("%w: client name %q", ErrDuplicate, client.Name)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(entityKey(prefixClient, id), data); err != nil {
			return err
		}
		return txn.Set(nameKey, []byte(strconv.FormatInt(id, 10)))
	})
}

// UpdateClient replaces an existing client record, moving the name index
// entry when the name changed.
func (s *BadgerStore) UpdateClient(_ context.Context, client models.Client) error {
	key := entityKey(prefixClient, client.ID)
	data, err := json.Marshal(client)
	if err != nil {
		return fmt.Errorf("marshal client: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var old models.Client
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &old)
		}); err != nil {
			return err
		}
		if old.Name != client.Name {
			if err := txn.Delete(clientNameKey(old.Name)); err != nil {
				return err
			}
			if err := txn.Set(clientNameKey(client.Name), []byte(strconv.FormatInt(client.ID, 10))); err != nil {
				return err
			}
		}
		return txn.Set(key, data)
	})
}

// DeleteClient removes a client record and its name index entry.
func (s *BadgerStore) DeleteClient(ctx context.Context, id int64) error {
	client, err := s.ClientByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(entityKey(prefixClient, id)); err != nil {
			return err
		}
		return txn.Delete(clientNameKey(client.Name))
	})
}

// ClientByName resolves a client through the name index.
func (s *BadgerStore) ClientByName(ctx context.Context, name string) (models.Client, error) {
	var idText []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(clientNameKey(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		idText, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return models.Client{}, err
	}
	id, err := strconv.ParseInt(string(idText), 10, 64)
	if err != nil {
		return models.Client{}, fmt.Errorf("corrupt client name index for %q: %w", name, err)
	}
	return s.ClientByID(ctx, id)
}

func employeeNameKey(username string) []byte {
	return []byte(prefixEmployeeName + strings.ToLower(username))
}

// EmployeeByUsername resolves an employee through the username index.
func (s *BadgerStore) EmployeeByUsername(_ context.Context, username string) (models.Employee, error) {
	var employee models.Employee
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(employeeNameKey(username))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		idText, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		id, err := strconv.ParseInt(string(idText), 10, 64)
		if err != nil {
			return fmt.Errorf("corrupt employee username index for %q: %w", username, err)
		}
		entity, err := txn.Get(entityKey(prefixEmployee, id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return entity.Value(func(val []byte) error {
			return json.Unmarshal(val, &employee)
		})
	})
	return employee, err
}

// SaveEmployee assigns a fresh id and stores the employee with its
// username index entry. An existing username is ErrDuplicate.
func (s *BadgerStore) SaveEmployee(_ context.Context, employee *models.Employee) error {
	id, err := nextID(s.employeeSeq)
	if err != nil {
		return err
	}
	employee.ID = id
	data, err := json.Marshal(employee)
	if err != nil {
		return fmt.Errorf("marshal employee: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		nameKey := employeeNameKey(employee.Username)
		if _, err := txn.Get(nameKey); err == nil {
			return fmt.Errorf("%w: username %q", ErrDuplicate, employee.Username)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(entityKey(prefixEmployee, id), data); err != nil {
			return err
		}
		return txn.Set(nameKey, []byte(strconv.FormatInt(id, 10)))
	})
}
