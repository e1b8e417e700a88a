package api

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Bot Console</title>
<style>
*,*::before,*::after{box-sizing:border-box;margin:0;padding:0}
:root{
  --bg:#0f1117;--bg-card:#161b22;--bg-input:#0d1117;
  --border:#30363d;--text:#e1e4e8;--text-muted:#8b949e;
  --primary:#58a6ff;--green:#3fb950;--red:#f85149;--yellow:#d29922;
  --radius:8px;--radius-sm:4px;
}
body{font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Helvetica,Arial,sans-serif;background:var(--bg);color:var(--text);line-height:1.5;min-height:100vh}
button{cursor:pointer;font-family:inherit;font-size:inherit}
.container{max-width:1100px;margin:0 auto;padding:0 24px 48px}
header{background:var(--bg-card);border-bottom:1px solid var(--border);padding:12px 24px;position:sticky;top:0}
.header-inner{max-width:1100px;margin:0 auto;display:flex;align-items:center;gap:16px}
.header-title{font-size:20px;font-weight:700}
.badge{display:inline-flex;align-items:center;gap:4px;padding:2px 10px;border-radius:12px;font-size:12px;font-weight:600;border:1px solid var(--border);margin-left:auto}
.badge-healthy{color:var(--green);border-color:var(--green)}
.badge-unhealthy{color:var(--red);border-color:var(--red)}
.summary{display:grid;grid-template-columns:repeat(4,1fr);gap:16px;margin:24px 0}
.card{background:var(--bg-card);border:1px solid var(--border);border-radius:var(--radius);padding:20px}
.card-label{font-size:12px;text-transform:uppercase;letter-spacing:.5px;color:var(--text-muted);margin-bottom:4px}
.card-value{font-size:32px;font-weight:700;line-height:1.2}
.section{background:var(--bg-card);border:1px solid var(--border);border-radius:var(--radius);padding:20px;margin-bottom:24px}
.section h2{font-size:16px;margin-bottom:12px}
.row{display:flex;gap:8px;flex-wrap:wrap;align-items:center}
input,textarea{background:var(--bg-input);color:var(--text);border:1px solid var(--border);border-radius:var(--radius-sm);padding:6px 10px;font-size:14px}
.btn{background:var(--bg-input);color:var(--text);border:1px solid var(--border);border-radius:var(--radius-sm);padding:6px 14px}
.btn-primary{border-color:var(--primary);color:var(--primary)}
.btn-danger{border-color:var(--red);color:var(--red)}
.msg{font-size:13px;color:var(--text-muted);margin-top:8px;min-height:18px}
.msg.error{color:var(--red)}
.msg.warn{color:var(--yellow)}
pre{background:var(--bg-input);border:1px solid var(--border);border-radius:var(--radius-sm);padding:12px;font-size:12px;overflow:auto;max-height:260px}
</style>
</head>
<body>
<header>
  <div class="header-inner">
    <div class="header-title">Bot Console</div>
    <span class="badge" id="bot-badge">bot: unknown</span>
  </div>
</header>
<div class="container">
  <div class="summary">
    <div class="card"><div class="card-label">Total Users</div><div class="card-value" id="stat-users">–</div></div>
    <div class="card"><div class="card-label">Events (24h)</div><div class="card-value" id="stat-events">–</div></div>
    <div class="card"><div class="card-label">Cache Hits</div><div class="card-value" id="stat-hits">–</div></div>
    <div class="card"><div class="card-label">Avg Load (ms)</div><div class="card-value" id="stat-avg">–</div></div>
  </div>

  <div class="section">
    <h2>User Lookup</h2>
    <div class="row">
      <input type="number" id="user-id" placeholder="user id">
      <button class="btn btn-primary" onclick="lookupUser()">Load</button>
      <button class="btn" onclick="invalidateUser()">Invalidate</button>
      <button class="btn btn-danger" onclick="clearCache()">Clear Cache</button>
    </div>
    <div class="msg" id="user-msg"></div>
    <pre id="user-detail">{}</pre>
  </div>

  <div class="section">
    <h2>Bot Control</h2>
    <div class="row">
      <button class="btn btn-primary" onclick="botAction('start')">Start Bot</button>
      <button class="btn btn-danger" onclick="botAction('stop')">Stop Bot</button>
    </div>
    <div class="msg" id="bot-msg"></div>
  </div>

  <div class="section">
    <h2>Send Message</h2>
    <div class="row">
      <input type="number" id="msg-user-id" placeholder="user id (empty = all)">
      <input type="text" id="msg-text" placeholder="message" style="flex:1">
      <button class="btn btn-primary" onclick="sendMessage()">Send</button>
    </div>
    <div class="msg" id="send-msg"></div>
  </div>

  <div class="section">
    <h2>Realtime Stats</h2>
    <pre id="realtime">{}</pre>
  </div>
</div>
<script>
function api(path, opts) {
  return fetch(path, opts).then(function(resp) {
    return resp.json().then(function(data) { return {status: resp.status, data: data}; });
  });
}
function setMsg(id, text, cls) {
  var el = document.getElementById(id);
  el.textContent = text;
  el.className = 'msg' + (cls ? ' ' + cls : '');
}
function refreshStats() {
  api('/api/stats?refresh=1').then(function(r) {
    var d = r.data.data || {};
    document.getElementById('stat-users').textContent = d.total_users != null ? d.total_users : '–';
    document.getElementById('stat-events').textContent = d.events_24h != null ? d.events_24h : '–';
  });
  api('/api/cache/stats').then(function(r) {
    document.getElementById('stat-hits').textContent = r.data.cache_hits;
    document.getElementById('stat-avg').textContent = r.data.average_load_time_ms.toFixed(1);
  });
}
function refreshRealtime() {
  api('/api/realtime/stats').then(function(r) {
    document.getElementById('realtime').textContent = JSON.stringify(r.data.data || {}, null, 2);
  });
}
function refreshBotInfo() {
  api('/api/bot/info').then(function(r) {
    var badge = document.getElementById('bot-badge');
    var running = r.data.data && r.data.data.status === 'running';
    badge.textContent = 'bot: ' + (r.data.data && r.data.data.status ? r.data.data.status : 'unknown');
    badge.className = 'badge ' + (running ? 'badge-healthy' : 'badge-unhealthy');
  });
}
function lookupUser() {
  var id = document.getElementById('user-id').value;
  if (!id) return;
  setMsg('user-msg', 'loading...');
  api('/api/users/' + id).then(function(r) {
    if (r.status !== 200) {
      setMsg('user-msg', r.data.error || 'load failed', 'error');
      return;
    }
    var note = 'cache ' + r.data.cache + ', ' + r.data.elapsed_ms.toFixed(1) + 'ms';
    if (r.data.slow) note += ' (slow response)';
    setMsg('user-msg', note, r.data.slow ? 'warn' : '');
    document.getElementById('user-detail').textContent = JSON.stringify(r.data.user, null, 2);
  });
}
function invalidateUser() {
  var id = document.getElementById('user-id').value;
  if (!id) return;
  api('/api/cache/users/' + id, {method: 'DELETE'}).then(function() {
    setMsg('user-msg', 'cache entry invalidated');
  });
}
function clearCache() {
  api('/api/cache/clear', {method: 'POST'}).then(function() {
    setMsg('user-msg', 'cache cleared');
  });
}
function botAction(action) {
  api('/api/bot/status', {
    method: 'POST',
    headers: {'Content-Type': 'application/json'},
    body: JSON.stringify({action: action})
  }).then(function(r) {
    setMsg('bot-msg', r.data.message || '', r.status === 200 ? '' : 'error');
    refreshBotInfo();
  });
}
function sendMessage() {
  var id = document.getElementById('msg-user-id').value;
  var text = document.getElementById('msg-text').value;
  if (!text) { setMsg('send-msg', 'message is required', 'error'); return; }
  var path = id ? '/api/bot/send-message' : '/api/bot/send-message-all';
  var body = id ? {user_id: parseInt(id, 10), message: text} : {message: text};
  api(path, {
    method: 'POST',
    headers: {'Content-Type': 'application/json'},
    body: JSON.stringify(body)
  }).then(function(r) {
    setMsg('send-msg', r.data.message || '', r.status === 200 ? '' : 'error');
  });
}
refreshStats();
refreshRealtime();
refreshBotInfo();
setInterval(refreshStats, 10000);
setInterval(refreshRealtime, 5000);
</script>
</body>
</html>
`
