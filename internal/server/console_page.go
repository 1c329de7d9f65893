package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const consolePageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Console · Payforge</title>
    <link rel="icon" href="data:image/svg+xml,<svg xmlns='http://www.w3.org/2000/svg' viewBox='0 0 100 100'><text y='.9em' font-size='90'>⬡</text></svg>">
    <link href="https://fonts.googleapis.com/css2?family=Inter:wght@400;500;600&family=JetBrains+Mono:wght@400;500&display=swap" rel="stylesheet">
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        :root {
            --bg: #09090b; --bg-subtle: #18181b; --border: #27272a;
            --text: #fafafa; --text-secondary: #a1a1aa; --text-tertiary: #52525b;
            --accent: #6366f1; --ok: #22c55e; --warn: #f59e0b; --err: #ef4444;
        }
        body {
            font-family: 'Inter', -apple-system, sans-serif;
            background: var(--bg); color: var(--text);
            min-height: 100vh; font-size: 14px;
        }
        .mono { font-family: 'JetBrains Mono', monospace; }
        .container { max-width: 960px; margin: 0 auto; padding: 0 24px; }
        header { border-bottom: 1px solid var(--border); padding: 16px 0; }
        .header-inner { display: flex; justify-content: space-between; align-items: center; }
        .logo { display: flex; align-items: center; gap: 10px; }
        .logo-mark { width: 24px; height: 24px; background: var(--accent); border-radius: 6px; }
        .logo-text { font-weight: 600; font-size: 15px; }
        .user { display: flex; align-items: center; gap: 16px; color: var(--text-secondary); font-size: 13px; }
        .user button { background: none; border: none; color: var(--text-tertiary); cursor: pointer; font-size: 13px; }
        .user button:hover { color: var(--text); }
        h1 { font-size: 20px; font-weight: 600; padding: 32px 0 16px; }
        h2 { font-size: 15px; font-weight: 600; padding: 24px 0 12px; }
        select {
            background: var(--bg-subtle); border: 1px solid var(--border); color: var(--text);
            border-radius: 8px; padding: 8px 12px; font-size: 13px;
        }
        table { width: 100%; border-collapse: collapse; }
        th { text-align: left; color: var(--text-tertiary); font-size: 12px; font-weight: 500; padding: 10px 12px; border-bottom: 1px solid var(--border); }
        td { padding: 12px; border-bottom: 1px solid var(--border); font-size: 13px; }
        .badge { padding: 2px 8px; border-radius: 4px; font-size: 11px; text-transform: uppercase; }
        .badge.paid { background: rgba(34,197,94,0.15); color: var(--ok); }
        .badge.awaiting_payment, .badge.confirming, .badge.pending { background: rgba(245,158,11,0.15); color: var(--warn); }
        .badge.expired, .badge.cancelled, .badge.refunded { background: rgba(82,82,91,0.3); color: var(--text-tertiary); }
        .toggle { cursor: pointer; color: var(--accent); background: none; border: none; font-size: 13px; }
        .empty { text-align: center; padding: 48px; color: var(--text-tertiary); }
        a.pay-link { color: var(--text-tertiary); text-decoration: none; }
        a.pay-link:hover { color: var(--accent); }
    </style>
</head>
<body>
    <header><div class="container header-inner">
        <div class="logo"><div class="logo-mark"></div><span class="logo-text">Payforge Console</span></div>
        <div class="user"><span id="who"></span><button onclick="logout()">Sign out</button></div>
    </div></header>
    <main class="container">
        <h1>Invoices <select id="store" onchange="loadInvoices()"></select></h1>
        <table>
            <thead><tr><th>Invoice</th><th>Order</th><th>Amount</th><th>Status</th><th></th></tr></thead>
            <tbody id="invoices"><tr><td colspan="5" class="empty">Loading…</td></tr></tbody>
        </table>
        <h2>Accepted currencies</h2>
        <table>
            <thead><tr><th>Currency</th><th>Network</th><th>Limits</th><th>Status</th><th></th></tr></thead>
            <tbody id="currencies"><tr><td colspan="5" class="empty">Pick a store</td></tr></tbody>
        </table>
    </main>
    <script>
        const esc = s => String(s ?? '').replace(/[&<>"']/g, m => ({'&':'&amp;','<':'&lt;','>':'&gt;','"':'&quot;',"'":'&#39;'}[m]));
        let currencies = [];

        function api(path, opts) {
            return fetch(path, opts).then(r => {
                if (r.status === 401) { location.href = '/login'; throw new Error('unauthenticated'); }
                return r.json();
            });
        }

        function logout() { fetch('/logout', {method: 'POST'}).then(() => location.href = '/login'); }

        function storeId() { return document.getElementById('store').value; }

        function loadInvoices() {
            const sid = storeId();
            api('/console/api/invoices' + (sid ? '?storeId=' + encodeURIComponent(sid) : '')).then(data => {
                const rows = (data.invoices || []).map(inv =>
                    '<tr><td class="mono">' + esc(inv.id) + '</td>' +
                    '<td>' + esc(inv.orderId) + '</td>' +
                    '<td class="mono">' + esc(inv.fiatAmount) + ' ' + esc(inv.fiatCurrency) + '</td>' +
                    '<td><span class="badge ' + esc(inv.status) + '">' + esc(inv.status) + '</span></td>' +
                    '<td><a class="pay-link" href="/pay/' + encodeURIComponent(inv.id) + '" target="_blank">payment page ↗</a></td></tr>'
                ).join('');
                document.getElementById('invoices').innerHTML = rows || '<tr><td colspan="5" class="empty">No invoices yet</td></tr>';
            });
            loadCurrencies();
        }

        function loadCurrencies() {
            const sid = storeId();
            if (!sid) return;
            api('/console/api/stores/' + encodeURIComponent(sid) + '/currencies').then(data => {
                currencies = data.currencies || [];
                const rows = currencies.map((sc, i) =>
                    '<tr><td>' + esc(sc.symbol) + '</td>' +
                    '<td>' + esc(sc.networkId) + '</td>' +
                    '<td class="mono">' + esc(sc.minAmount) + ' – ' + esc(sc.maxAmount) + '</td>' +
                    '<td><span class="badge ' + (sc.isEnabled ? 'paid' : 'expired') + '">' + (sc.isEnabled ? 'enabled' : 'disabled') + '</span></td>' +
                    '<td><button class="toggle" onclick="toggle(' + i + ')">' + (sc.isEnabled ? 'Disable' : 'Enable') + '</button></td></tr>'
                ).join('');
                document.getElementById('currencies').innerHTML = rows || '<tr><td colspan="5" class="empty">No currencies configured</td></tr>';
            });
        }

        function toggle(i) {
            const sc = Object.assign({}, currencies[i], {isEnabled: !currencies[i].isEnabled});
            api('/console/api/stores/' + encodeURIComponent(storeId()) + '/currencies/' + encodeURIComponent(sc.id), {
                method: 'PUT',
                headers: {'Content-Type': 'application/json'},
                body: JSON.stringify(sc),
            }).then(loadCurrencies);
        }

        api('/console/api/me').then(data => {
            document.getElementById('who').textContent = data.user.email;
        });
        api('/console/api/stores').then(data => {
            const sel = document.getElementById('store');
            sel.innerHTML = (data.stores || []).map(st =>
                '<option value="' + esc(st.id) + '">' + esc(st.name) + '</option>'
            ).join('');
            loadInvoices();
        });
    </script>
</body>
</html>`

func (s *Server) consolePageHandler(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, consolePageHTML)
}
